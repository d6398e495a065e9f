// Package overrides provides commands to inspect and edit the manual override store
package overrides

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/tphakala/sourcefilter/internal/conf"
	"github.com/tphakala/sourcefilter/internal/decision"
	"github.com/tphakala/sourcefilter/internal/errors"
	"github.com/tphakala/sourcefilter/internal/logger"
	"github.com/tphakala/sourcefilter/internal/overrides"
	"github.com/tphakala/sourcefilter/internal/runconfig"
)

// Command creates the overrides parent command
func Command(settings *conf.Settings, fs afero.Fs) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overrides",
		Short: "Inspect and edit persisted manual overrides",
	}

	cmd.AddCommand(listCommand(settings, fs), addCommand(settings, fs))
	return cmd
}

func listCommand(settings *conf.Settings, fs afero.Fs) *cobra.Command {
	return &cobra.Command{
		Use:   "list <outputid | cat_<outputid>.dat>",
		Short: "Print the accepted and rejected source ids of an output identifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputID, err := resolveOutputID(args[0])
			if err != nil {
				return err
			}
			store, err := overrides.Open(&settings.Overrides, fs, logger.Global().Module("overrides"))
			if err != nil {
				return err
			}
			defer store.Close()

			set, warnings, err := store.Load(cmd.Context(), outputID)
			if err != nil {
				return err
			}
			printSet(cmd.OutOrStdout(), outputID, set, warnings)
			return nil
		},
	}
}

func addCommand(settings *conf.Settings, fs afero.Fs) *cobra.Command {
	return &cobra.Command{
		Use:   "add <outputid | cat_<outputid>.dat> <tokens>",
		Short: `Persist override tokens such as "r319, a605" without running a rejection pass`,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputID, err := resolveOutputID(args[0])
			if err != nil {
				return err
			}
			tokens, errs := decision.ParseTokens(strings.Join(args[1:], ","))
			if len(errs) > 0 {
				return errors.Join(errs...)
			}

			store, err := overrides.Open(&settings.Overrides, fs, logger.Global().Module("overrides"))
			if err != nil {
				return err
			}
			defer store.Close()

			byKind := map[overrides.Kind][]int{}
			for _, tok := range tokens {
				byKind[tok.Kind] = append(byKind[tok.Kind], tok.ID)
			}
			for _, kind := range []overrides.Kind{overrides.KindAccept, overrides.KindReject} {
				if err := store.Append(cmd.Context(), outputID, kind, byKind[kind]); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d overrides for %s\n", len(tokens), outputID)
			return nil
		},
	}
}

// resolveOutputID accepts either a bare output identifier or a catalog path.
func resolveOutputID(arg string) (string, error) {
	var rc runconfig.RunConfig
	var err error
	if strings.HasSuffix(arg, ".dat") || strings.ContainsRune(arg, filepath.Separator) {
		rc, err = runconfig.FromCatalogPath(arg)
	} else {
		rc, err = runconfig.ParseOutputID(arg)
	}
	if err != nil {
		return "", err
	}
	return rc.OutputID(), nil
}

func printSet(out io.Writer, outputID string, set overrides.Set, warnings []error) {
	fmt.Fprintf(out, "Overrides for %s\n", outputID)
	fmt.Fprintf(out, "  accepted: %s\n", joinIDs(set.IDs(overrides.KindAccept)))
	fmt.Fprintf(out, "  rejected: %s\n", joinIDs(set.IDs(overrides.KindReject)))
	if conflicts := set.Conflicts(); len(conflicts) > 0 {
		fmt.Fprintf(out, "  conflicting: %s\n", joinIDs(conflicts))
	}
	for _, w := range warnings {
		fmt.Fprintf(out, "  warning: %v\n", w)
	}
}

func joinIDs(ids []int) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, " ")
}
