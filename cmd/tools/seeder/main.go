package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/camper-budget/internal/cache"
)

type option struct {
	category string
	name     string
	standard string
	export   string
}

// catalog is the demo price list loaded into catalog_options.
var catalog = []option{
	{"model", "Camper 540", "39900", "37500"},
	{"model", "Camper 600", "45000", "42300"},
	{"model", "Camper 636 Plus", "52900", "49700"},
	{"engine", "2.2 120CV", "0", ""},
	{"engine", "2.2 140CV", "1900", "1800"},
	{"engine", "2.2 180CV Automático", "5200", "4900"},
	{"exterior_color", "Blanco glaciar", "0", ""},
	{"exterior_color", "Gris ártico", "0", ""},
	{"exterior_color", "Azul profundo", "0", ""},
	{"interior_color", "Tela gris", "0", ""},
	{"interior_color", "Piel sintética arena", "650", "600"},
	{"pack", "Pack Essentials", "2400", "2200"},
	{"pack", "Pack Adventure", "4900", "4500"},
	{"pack", "Pack Ultimate", "8900", "8200"},
	{"pack", "Pack Invierno", "1600", "1500"},
	{"electric_system", "Batería AGM 95Ah", "0", ""},
	{"electric_system", "Batería de litio 200Ah", "2300", "2150"},
	{"additional_item", "Toldo lateral", "950", "890"},
	{"additional_item", "Placa solar 200W", "780", "720"},
	{"additional_item", "Baca con escalera", "690", "650"},
	{"additional_item", "Portabicis trasero", "450", ""},
	{"additional_item", "Calefacción estacionaria", "1450", "1350"},
	{"additional_item", "Climatizador de techo", "1900", "1790"},
	{"additional_item", "Doble acristalamiento", "520", ""},
}

// packMembers records which additional items each pack already includes.
var packMembers = map[string][]string{
	"Pack Essentials": {"Toldo lateral"},
	"Pack Adventure":  {"Toldo lateral", "Placa solar 200W", "Baca con escalera", "Portabicis trasero", "Calefacción estacionaria"},
	"Pack Ultimate":   {"Toldo lateral", "Placa solar 200W", "Baca con escalera", "Portabicis trasero", "Calefacción estacionaria", "Climatizador de techo"},
	"Pack Invierno":   {"Calefacción estacionaria", "Doble acristalamiento"},
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	ids := seedCatalog(db)
	seedPackMembers(db, ids)
	seedOpportunities(db)

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Fatalf("Failed to parse REDIS_URL: %v", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := dropCatalogCache(ctx, client); err != nil {
			log.Fatalf("Failed to drop cached catalog listings: %v", err)
		}
	} else {
		log.Println("REDIS_URL is not set, cached catalog listings expire on their own")
	}

	log.Println("Seeding completed successfully!")
}

// dropCatalogCache evicts the catalog listings the API cached before the reseed.
func dropCatalogCache(ctx context.Context, client redis.UniversalClient) error {
	log.Println("Dropping cached catalog listings...")
	return cache.New(client, 0).DeletePrefix(ctx, cache.CatalogPrefix)
}

func seedCatalog(db *sql.DB) map[string]string {
	log.Println("Seeding catalog options...")
	ids := make(map[string]string, len(catalog))
	for i, opt := range catalog {
		var export sql.NullString
		if opt.export != "" {
			export = sql.NullString{String: opt.export, Valid: true}
		}
		var id string
		err := db.QueryRow(`
			INSERT INTO catalog_options (category, name, standard_price, export_price, sort_order)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (category, name) DO UPDATE
			SET standard_price = EXCLUDED.standard_price,
			    export_price = EXCLUDED.export_price,
			    sort_order = EXCLUDED.sort_order,
			    updated_at = now()
			RETURNING id`, opt.category, opt.name, opt.standard, export, i*10).Scan(&id)
		if err != nil {
			log.Fatalf("Failed to seed option %s/%s: %v", opt.category, opt.name, err)
		}
		ids[opt.name] = id
	}
	log.Printf("Seeded %d catalog options", len(ids))
	return ids
}

func seedPackMembers(db *sql.DB, ids map[string]string) {
	log.Println("Seeding pack components...")
	for pack, members := range packMembers {
		for _, member := range members {
			_, err := db.Exec(`
				INSERT INTO pack_components (pack_id, option_id) VALUES ($1, $2)
				ON CONFLICT DO NOTHING`, ids[pack], ids[member])
			if err != nil {
				log.Fatalf("Failed to link %s to %s: %v", member, pack, err)
			}
		}
	}
}

func seedOpportunities(db *sql.DB) {
	log.Println("Seeding demo opportunities...")
	for _, opp := range []struct{ client, region string }{
		{"Marta Ferrer", "peninsula"},
		{"Jonay Afonso", "canarias"},
		{"Lukas Becker", "internacional"},
	} {
		var id string
		err := db.QueryRow(`
			INSERT INTO opportunities (client_name, region)
			SELECT $1, $2
			WHERE NOT EXISTS (SELECT 1 FROM opportunities WHERE client_name = $1)
			RETURNING id`, opp.client, opp.region).Scan(&id)
		switch {
		case err == sql.ErrNoRows:
			log.Printf("Opportunity for %s already present", opp.client)
		case err != nil:
			log.Fatalf("Failed to seed opportunity %s: %v", opp.client, err)
		default:
			log.Printf("Created opportunity %s for %s", id, opp.client)
		}
	}
}
