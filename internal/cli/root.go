// Package cli 提供 haullog 的命令行入口。
package cli

import (
	"fmt"
	"os"

	"github.com/haullog/internal/config"
	"github.com/haullog/internal/db"
	"github.com/haullog/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Version 在构建时通过 -ldflags 注入。
var Version = "dev"

type rootOptions struct {
	configFile string
}

// NewRootCmd 构建根命令及所有子命令。
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "haullog",
		Short:         "Mining logistics daily operations recorder",
		Long:          "haullog records daily truck operations and populates a star-schema warehouse for reporting.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default: ./haullog.yaml)")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newPopulateCmd(opts),
		newRunsCmd(opts),
		newSeedCmd(opts),
	)
	return rootCmd
}

// Execute 运行根命令，错误输出到 stderr。
func Execute() error {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// runtime 持有一次命令执行期间打开的资源。
type runtime struct {
	cfg    config.AppConfig
	logger *zap.Logger
	db     *gorm.DB
}

// bootstrap 加载配置、创建 logger、打开并迁移数据库。
func bootstrap(opts *rootOptions) (*runtime, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	gdb, err := db.Open(db.Options{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN, Logger: logger})
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	if err := db.Migrate(gdb); err != nil {
		_ = db.Close(gdb)
		_ = logger.Sync()
		return nil, err
	}

	if cfg.ConfigFile != "" {
		logger.Debug("configuration loaded", zap.String("file", cfg.ConfigFile))
	}
	return &runtime{cfg: cfg, logger: logger, db: gdb}, nil
}

func (r *runtime) close() {
	if err := db.Close(r.db); err != nil {
		r.logger.Warn("close database", zap.Error(err))
	}
	_ = r.logger.Sync()
}
