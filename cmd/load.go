package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/streetmix/sx/internal/mode"
	"github.com/streetmix/sx/internal/output"
)

var (
	loadMode   mode.Mode
	loadStreet string
	loadJSON   bool
)

// sessionReport is the JSON shape of a bootstrap result.
type sessionReport struct {
	Mode     string          `json:"mode"`
	SignedIn bool            `json:"signedIn"`
	UserID   string          `json:"userId,omitempty"`
	Street   *streetReport   `json:"street,omitempty"`
	Flags    map[string]bool `json:"flags"`
	Errors   []errorReport   `json:"errors,omitempty"`
	Dialogs  []string        `json:"dialogs,omitempty"`
	Notices  []string        `json:"notices,omitempty"`
}

type streetReport struct {
	ID           string `json:"id"`
	NamespacedID string `json:"namespacedId,omitempty"`
	CreatorID    string `json:"creatorId,omitempty"`
	Name         string `json:"name,omitempty"`
}

type errorReport struct {
	Code  string `json:"code"`
	Fatal bool   `json:"fatal"`
}

func buildReport(a *app) sessionReport {
	data := a.session.GetSignInData()
	r := sessionReport{
		Mode:     a.machine.Current().String(),
		SignedIn: a.session.IsSignedIn(),
		UserID:   data.UserID,
		Flags:    map[string]bool{},
		Dialogs:  a.store.Dialogs(),
		Notices:  a.store.Notices(),
	}
	if s := a.store.Street(); s.ID != "" {
		r.Street = &streetReport{ID: s.ID, NamespacedID: s.NamespacedID, CreatorID: s.CreatorID, Name: s.Name}
	}
	for _, f := range a.store.Flags().List() {
		r.Flags[f.Name] = f.Value
	}
	for _, e := range a.store.Errors() {
		r.Errors = append(r.Errors, errorReport{Code: string(e.Code), Fatal: e.Fatal})
	}
	return r
}

func printReport(a *app, asJSON bool) error {
	if asJSON {
		return output.JSON(buildReport(a))
	}

	data := a.session.GetSignInData()
	displayName := ""
	if data.Details != nil {
		displayName = data.Details.DisplayName
	}
	fmt.Printf("Mode:    %s\n", output.FormatMode(a.machine.Current()))
	fmt.Printf("Session: %s\n", output.FormatSignIn(a.session.IsSignedIn(), data.UserID, displayName))
	if s := a.store.Street(); s.ID != "" {
		label := s.ID
		if s.Name != "" {
			label = fmt.Sprintf("%s %q", s.ID, s.Name)
		}
		if s.CreatorID != "" {
			label += " by " + s.CreatorID
		}
		fmt.Printf("Street:  %s\n", label)
	}

	for _, n := range a.store.Notices() {
		output.Success("%s", n)
	}
	if errs := a.store.Errors(); len(errs) > 0 {
		fmt.Print(output.SectionHeader("errors"))
		for _, e := range errs {
			fmt.Println("  " + output.FormatAppError(e))
		}
	}
	return nil
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Bootstrap the session once and report the result",
	Long: `Runs one session bootstrap: consumes any sign-in handoff, restores the
durable session, fetches the user's details, applies feature flags, and opens
or creates the working street for the chosen mode.`,
	Example: `  sx load
  sx load --mode just-signed-in
  sx load --street 7a1c --json`,
	GroupID: "session",
	RunE: func(cmd *cobra.Command, args []string) error {
		initial := loadMode
		if !cmd.Flags().Changed("mode") && loadStreet != "" {
			initial = mode.ExistingStreet
		}

		a, err := newApp(appOptions{mode: initial, streetID: loadStreet})
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer a.Close()

		if _, err := a.session.LoadSignIn(context.Background()); err != nil {
			output.Warning("%v", err)
		}
		if err := printReport(a, loadJSON); err != nil {
			return err
		}
		if fatal, ok := a.store.FatalError(); ok {
			return fatal
		}
		return nil
	},
}

func init() {
	loadMode = mode.Continue
	loadCmd.Flags().Var(&loadMode, "mode", "initial mode (continue, new-street, existing-street, just-signed-in, user-gallery, ...)")
	loadCmd.Flags().StringVar(&loadStreet, "street", "", "street id to open (implies existing-street)")
	loadCmd.Flags().BoolVar(&loadJSON, "json", false, "output JSON")
	rootCmd.AddCommand(loadCmd)
}
