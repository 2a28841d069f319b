// Package autoload initialises the global logger from LOG_* settings on import.
package autoload

import (
	configx "github.com/tanpawarit/autoblog/pkg/config"
	logx "github.com/tanpawarit/autoblog/pkg/logger"
)

func init() {
	conf, err := configx.New[logx.Config]("LOG")
	if err != nil {
		logx.Init()
		return
	}
	logx.Init(*conf)
}
