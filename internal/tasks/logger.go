package tasks

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Logger adapts zerolog to asynq.Logger.
type Logger struct {
	Log zerolog.Logger
}

func (l Logger) Debug(args ...any) { l.Log.Debug().Msg(fmt.Sprint(args...)) }
func (l Logger) Info(args ...any)  { l.Log.Info().Msg(fmt.Sprint(args...)) }
func (l Logger) Warn(args ...any)  { l.Log.Warn().Msg(fmt.Sprint(args...)) }
func (l Logger) Error(args ...any) { l.Log.Error().Msg(fmt.Sprint(args...)) }
func (l Logger) Fatal(args ...any) { l.Log.Fatal().Msg(fmt.Sprint(args...)) }
