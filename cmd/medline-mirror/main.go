// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the medline-mirror CLI: a local
// mirror of the bulk citation archive, kept current by resumable FTP
// downloads and incremental batch imports.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/medline-mirror/internal/ftpx"
	"github.com/pdiddy/medline-mirror/internal/mirror"
	"github.com/pdiddy/medline-mirror/internal/secrets"
	"github.com/pdiddy/medline-mirror/internal/store"
	"github.com/pdiddy/medline-mirror/internal/tracker"
	"github.com/pdiddy/medline-mirror/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from .secrets/ at startup.
var loadedSecrets map[string]string

var rootCmd = &cobra.Command{
	Use:   "medline-mirror",
	Short: "Maintain an offline mirror of the bulk citation archive",
	Long: `medline-mirror keeps a complete local copy of the archive's baseline and
daily-update files: it downloads them over FTP with byte-level resume,
verifies size and compression integrity, streams the XML into normalized
records, and upserts them into a local SQLite corpus.

Each pipeline stage is a subcommand: download, import, status, scan, and
repair.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./medline-mirror.yaml or ~/.config/medline-mirror/config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("medline-mirror")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "medline-mirror"))
		}
	}

	viper.SetEnvPrefix("MEDLINE_MIRROR")
	viper.AutomaticEnv()

	viper.SetDefault("archive.host", "ftp.ncbi.nlm.nih.gov")
	viper.SetDefault("archive.port", 21)
	viper.SetDefault("archive.user", "anonymous")
	viper.SetDefault("archive.baseline_dir", "/pubmed/baseline")
	viper.SetDefault("archive.update_dir", "/pubmed/updatefiles")
	viper.SetDefault("archive.timeout", "30s")
	viper.SetDefault("archive.max_retries", 5)
	viper.SetDefault("storage.data_dir", "data")
	viper.SetDefault("import.database_path", "medline.db")
	viper.SetDefault("import.source_id", "pubmed")
	viper.SetDefault("import.batch_size", 500)

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// buildConfig resolves the pipeline configuration from viper and secrets.
func buildConfig() types.MirrorConfig {
	password := viper.GetString("archive.password")
	if password == "" {
		password = loadedSecrets["ftp-password"]
	}
	if password == "" {
		// Anonymous FTP asks for a contact address as the password.
		password = loadedSecrets["contact-email"]
	}
	if password == "" {
		password = "anonymous@"
	}

	return types.MirrorConfig{
		Archive: types.ArchiveConfig{
			Host:        viper.GetString("archive.host"),
			Port:        viper.GetInt("archive.port"),
			User:        viper.GetString("archive.user"),
			Password:    password,
			BaselineDir: viper.GetString("archive.baseline_dir"),
			UpdateDir:   viper.GetString("archive.update_dir"),
			Timeout:     viper.GetDuration("archive.timeout"),
			MaxRetries:  viper.GetInt("archive.max_retries"),
		},
		Storage: types.StorageConfig{
			DataDir: viper.GetString("storage.data_dir"),
		},
		Import: types.ImportConfig{
			DatabasePath: viper.GetString("import.database_path"),
			SourceID:     viper.GetString("import.source_id"),
			BatchSize:    viper.GetInt("import.batch_size"),
		},
	}
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if verbose, _ := rootCmd.PersistentFlags().GetBool("verbose"); verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	return log
}

// newService opens the tracker, corpus store, and archive client and wires
// them into a mirror service. The returned cleanup closes everything.
func newService() (*mirror.Service, func(), error) {
	cfg := buildConfig()
	log := newLogger()

	tr, err := tracker.Open(cfg.Import.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(cfg.Import.DatabasePath, cfg.Import.SourceID)
	if err != nil {
		tr.Close()
		return nil, nil, err
	}
	archive := ftpx.NewClient(cfg.Archive, log)

	svc := mirror.New(cfg, archive, tr, st, log)
	cleanup := func() {
		archive.Close()
		st.Close()
		tr.Close()
	}
	return svc, cleanup, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
