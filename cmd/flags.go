package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/streetmix/sx/internal/config"
	"github.com/streetmix/sx/internal/flags"
	"github.com/streetmix/sx/internal/localstore"
	"github.com/streetmix/sx/internal/mode"
	"github.com/streetmix/sx/internal/output"
	"github.com/streetmix/sx/internal/roles"
	"github.com/streetmix/sx/internal/signin"
)

var flagsJSON bool

var flagsCmd = &cobra.Command{
	Use:     "flags",
	Short:   "Inspect feature flags and edit session overrides",
	GroupID: "system",
}

var flagsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List flags with their resolved value and source",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appOptions{mode: mode.SignOut})
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer a.Close()

		if _, err := a.session.LoadSignIn(context.Background()); err != nil {
			slog.Warn("flags: bootstrap", "err", err)
		}

		states := a.store.Flags().List()
		if flagsJSON {
			return output.JSON(states)
		}

		fmt.Println(output.FormatFlagTable(states))

		if data := a.session.GetSignInData(); data.Details != nil && len(data.Details.Roles) > 0 {
			fmt.Print(output.SectionHeader("your roles"))
			for _, key := range data.Details.Roles {
				r, ok := roles.Lookup(key)
				if !ok {
					output.Warning("role %s is not in the role table", key)
					continue
				}
				fmt.Println("  " + output.FormatRole(r))
			}
		}

		width := output.TerminalWidth(0)
		var notes []string
		for _, f := range flags.ListAll() {
			notes = append(notes, output.Truncate(f.Name+": "+f.Description, width-4))
		}
		fmt.Print(output.SectionHeader("known flags"))
		for _, line := range output.BulletList(notes, 2) {
			fmt.Println(line)
		}
		return nil
	},
}

var flagsRolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "List user roles and the flags each one sets",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, err := roles.All()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if flagsJSON {
			return output.JSON(all)
		}
		for _, r := range all {
			fmt.Println(output.FormatRole(r))
		}
		return nil
	},
}

var flagsSetCmd = &cobra.Command{
	Use:   "set <name> <true|false>",
	Short: "Set a session flag override",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := flags.NormalizeName(args[0])
		value, err := parseBool(args[1])
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if !flags.IsKnownFlag(name) {
			output.Warning("%s is not a known flag; setting it anyway", name)
		}

		storage, err := openStorage()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer storage.Close()

		current, err := (&signin.Persistence{Storage: storage}).ReadSessionFlags()
		if err != nil {
			output.Warning("discarding unreadable session flags: %v", err)
			current = nil
		}
		if current == nil {
			current = map[string]bool{}
		}
		current[name] = value

		if err := writeSessionFlags(storage, current); err != nil {
			output.Error("%v", err)
			return err
		}
		output.Success("session override %s = %t", name, value)
		return nil
	},
}

var flagsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all session flag overrides",
	RunE: func(cmd *cobra.Command, args []string) error {
		storage, err := openStorage()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer storage.Close()

		if err := storage.Remove(localstore.KeyFlags); err != nil {
			output.Error("clear session flags: %v", err)
			return err
		}
		output.Success("session overrides cleared")
		return nil
	},
}

func openStorage() (*localstore.Store, error) {
	path, err := config.StorageDBPath()
	if err != nil {
		return nil, err
	}
	return localstore.Open(path)
}

func writeSessionFlags(storage *localstore.Store, values map[string]bool) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode session flags: %w", err)
	}
	return storage.Set(localstore.KeyFlags, string(data))
}

func init() {
	flagsListCmd.Flags().BoolVar(&flagsJSON, "json", false, "output JSON")
	flagsRolesCmd.Flags().BoolVar(&flagsJSON, "json", false, "output JSON")
	flagsCmd.AddCommand(flagsListCmd)
	flagsCmd.AddCommand(flagsRolesCmd)
	flagsCmd.AddCommand(flagsSetCmd)
	flagsCmd.AddCommand(flagsClearCmd)
	rootCmd.AddCommand(flagsCmd)
}
