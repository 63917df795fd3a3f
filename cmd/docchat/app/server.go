// Package app implements the docchat server command.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kart-io/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kart-io/docchat/cmd/docchat/app/options"
	"github.com/kart-io/docchat/internal/docchat"
)

// NewApp creates the root cobra command for the docchat server.
func NewApp() *cobra.Command {
	opts := options.NewServerOptions()

	cmd := &cobra.Command{
		Use:   docchat.Name,
		Short: "Document ingestion and retrieval-augmented chat service",
		Long: `The docchat server ingests product documentation into a vector store and
answers support questions over SSE chat, grounding each answer in the
retrieved passages.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			version.PrintAndExitIfRequested()
			if err := loadConfig(cmd, opts); err != nil {
				return err
			}
			if err := opts.Complete(); err != nil {
				return err
			}
			if err := opts.Validate(); err != nil {
				return err
			}
			return run(opts)
		},
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Path to config file")
	version.AddFlags(cmd.PersistentFlags())
	opts.AddFlags(cmd.Flags())

	return cmd
}

// run 根据配置构建并启动服务器，阻塞直到退出。
func run(opts *options.ServerOptions) error {
	cfg, err := opts.Config()
	if err != nil {
		return err
	}

	ctx := context.Background()
	server, err := cfg.NewServer(ctx)
	if err != nil {
		return err
	}

	return server.Run(ctx)
}

// loadConfig loads configuration from file and environment before the
// command-line flags are applied on top.
func loadConfig(cmd *cobra.Command, opts *options.ServerOptions) error {
	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName(docchat.Name)
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(filepath.Join(os.Getenv("HOME"), "."+docchat.Name))
		viper.AddConfigPath("/etc/" + docchat.Name)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		// 未找到配置文件时回退到默认值与命令行参数
	}

	viper.SetEnvPrefix(strings.ToUpper(strings.ReplaceAll(docchat.Name, "-", "_")))
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.Unmarshal(opts); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}
