package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/streetmix/sx/internal/config"
	"github.com/streetmix/sx/internal/output"
)

// validConfigKeys lists the supported config keys for set/get.
var validConfigKeys = []string{
	"api_url",
	"sign_in_url",
	"callback_addr",
	"read_only",
	"request_timeout",
	"watch_interval",
	"log_level",
	"log_format",
}

func isValidConfigKey(key string) bool {
	for _, k := range validConfigKeys {
		if k == key {
			return true
		}
	}
	return false
}

func parseBool(val string) (bool, error) {
	switch strings.ToLower(val) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q (use true/false/1/0)", val)
	}
}

func parseDuration(val string) error {
	d, err := time.ParseDuration(val)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %v", val, err)
	}
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %s", val)
	}
	return nil
}

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Manage sx configuration",
	GroupID: "system",
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]

		if !isValidConfigKey(key) {
			output.Error("unknown config key: %s", key)
			fmt.Println("Valid keys:", strings.Join(validConfigKeys, ", "))
			return fmt.Errorf("unknown config key: %s", key)
		}

		cfg, err := config.Load()
		if err != nil {
			output.Error("load config: %v", err)
			return err
		}

		switch key {
		case "api_url":
			cfg.APIURL = val
		case "sign_in_url":
			cfg.SignInURL = val
		case "callback_addr":
			cfg.CallbackAddr = val
		case "read_only":
			b, err := parseBool(val)
			if err != nil {
				output.Error("%v", err)
				return err
			}
			cfg.ReadOnly = &b
		case "request_timeout":
			if err := parseDuration(val); err != nil {
				output.Error("%v", err)
				return err
			}
			cfg.RequestTimeout = val
		case "watch_interval":
			if err := parseDuration(val); err != nil {
				output.Error("%v", err)
				return err
			}
			cfg.WatchInterval = val
		case "log_level":
			cfg.LogLevel = val
		case "log_format":
			cfg.LogFormat = val
		}

		if err := config.Save(cfg); err != nil {
			output.Error("save config: %v", err)
			return err
		}

		output.Success("set %s = %s", key, val)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get the effective config value (env > config.json > default)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]

		if !isValidConfigKey(key) {
			output.Error("unknown config key: %s", key)
			fmt.Println("Valid keys:", strings.Join(validConfigKeys, ", "))
			return fmt.Errorf("unknown config key: %s", key)
		}

		var val string
		switch key {
		case "api_url":
			val = config.GetAPIURL()
		case "sign_in_url":
			val = config.GetSignInURL()
		case "callback_addr":
			val = config.GetCallbackAddr()
		case "read_only":
			val = strconv.FormatBool(config.IsReadOnly())
		case "request_timeout":
			val = config.GetRequestTimeout().String()
		case "watch_interval":
			val = config.GetWatchInterval().String()
		case "log_level":
			val = config.GetLogLevel()
		case "log_format":
			val = config.GetLogFormat()
		}

		fmt.Println(val)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List values stored in config.json",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			output.Error("load config: %v", err)
			return err
		}

		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			output.Error("marshal config: %v", err)
			return err
		}

		fmt.Println(string(data))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configListCmd)
	rootCmd.AddCommand(configCmd)
}
