package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		infraModule,
		repositoryModule,
		serviceModule,
		handlerModule,
		fx.Invoke(startBackground, startServer),
	)

	app.Run()
}
