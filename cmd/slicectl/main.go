// Command slicectl runs the receipt pipeline from the command line.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Aashish23092/slice-receipts/config"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:               "slicectl",
		Short:             "Scan receipts and score the extraction pipeline",
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./slicectl.yaml)")
	flags.String("ocr-engine", "", "OCR engine (tesseract, paddle)")
	flags.String("gemini-model", "", "Gemini model used for the fallback")
	flags.Duration("gemini-timeout", 0, "fallback timeout")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (text, json)")

	_ = viper.BindPFlag("ocr.engine", flags.Lookup("ocr-engine"))
	_ = viper.BindPFlag("gemini.model", flags.Lookup("gemini-model"))
	_ = viper.BindPFlag("gemini.timeout", flags.Lookup("gemini-timeout"))
	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("log.format", flags.Lookup("log-format"))

	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(totalsCmd())
	rootCmd.AddCommand(evaluateCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read .env: %w", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("slicectl")
		viper.SetConfigType("yaml")
	}
	viper.SetEnvPrefix("SLICE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

// loadConfig layers flags, SLICE_* variables and the config file over the
// service environment.
func loadConfig() *config.Config {
	cfg := config.LoadConfig()
	if v := viper.GetString("ocr.engine"); v != "" {
		cfg.OCREngine = strings.ToLower(v)
	}
	if v := viper.GetString("gemini.model"); v != "" {
		cfg.GeminiModel = v
	}
	if v := viper.GetDuration("gemini.timeout"); v > 0 {
		cfg.GeminiTimeout = v
	}
	if v := viper.GetString("log.level"); v != "" {
		cfg.LogLevel = v
	}
	if v := viper.GetString("log.format"); v != "" {
		cfg.LogFormat = v
	}
	config.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	return cfg
}
