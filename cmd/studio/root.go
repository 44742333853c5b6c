// cmd/studio/root.go
package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Corphon/ShortsStudio/internal/app"
	"github.com/Corphon/ShortsStudio/internal/config"
	"github.com/Corphon/ShortsStudio/internal/llm"
	"github.com/Corphon/ShortsStudio/internal/services"
	"github.com/Corphon/ShortsStudio/internal/utils"
)

// backendFactory 创建网关和需要关闭的提供者，测试中可替换
type backendFactory func(logger *utils.Logger) (*services.Gateway, llm.Provider, error)

// cliState 命令执行期间共享的依赖
type cliState struct {
	debug    bool
	logger   *utils.Logger
	gateway  *services.Gateway
	provider llm.Provider
}

func defaultBackend(logger *utils.Logger) (*services.Gateway, llm.Provider, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	provider, err := app.BuildProvider(cfg)
	if err != nil {
		return nil, nil, err
	}
	gateway, err := app.BuildGateway(cfg, provider, logger, utils.NewMetricsCollector())
	if err != nil {
		provider.Close()
		return nil, nil, err
	}
	return gateway, provider, nil
}

// newCLILogger 日志写到 stderr，stdout 只留给命令输出
func newCLILogger(debug bool) *utils.Logger {
	level := zapcore.WarnLevel
	if debug {
		level = zapcore.DebugLevel
	}
	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	z, err := zcfg.Build()
	if err != nil {
		z = zap.NewNop()
	}
	return utils.NewLoggerFromZap(z)
}

func newRootCmd(build backendFactory) *cobra.Command {
	state := &cliState{}

	root := &cobra.Command{
		Use:   "studio",
		Short: "ShortsStudio - YouTube Shorts script and meme image assistant",
		Long: `studio generates short-form video scripts grounded in Google Search,
illustrates each part with a meme-style image and edits existing images
by instruction. GEMINI_API_KEY must be set.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			state.logger = newCLILogger(state.debug)
			gateway, provider, err := build(state.logger)
			if err != nil {
				return err
			}
			state.gateway, state.provider = gateway, provider
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if state.logger != nil {
				_ = state.logger.Sync()
			}
			if state.provider != nil {
				return state.provider.Close()
			}
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&state.debug, "debug", false, "enable debug logging")

	root.AddCommand(newScriptCmd(state))
	root.AddCommand(newImageCmd(state))
	root.AddCommand(newEditCmd(state))
	return root
}
