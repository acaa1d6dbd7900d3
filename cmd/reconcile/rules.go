package main

import (
	"github.com/homevault/reconcile/internal/rules"

	"github.com/spf13/cobra"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage recurring-detection rule sets",
	}

	cmd.AddCommand(rulesSeedCmd())
	cmd.AddCommand(rulesShowCmd())

	return cmd
}

func rulesSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Install the built-in default rule set if none exists",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}

			if err := rules.NewResolver(store).Seed(cmd.Context()); err != nil {
				return err
			}
			cmd.Println("Default rule set installed")
			return nil
		},
	}
}

func rulesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the rule set active for the acting user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := requireUser()
			if err != nil {
				return err
			}

			store, err := openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			rs, err := rules.NewResolver(store).Resolve(cmd.Context(), userID)
			if err != nil {
				return err
			}

			cmd.Printf("%s (version %s", rs.Name, rs.Version)
			if rs.IsDefault {
				cmd.Printf(", default")
			}
			if rs.CustomUser != "" {
				cmd.Printf(", override for %s", rs.CustomUser)
			}
			cmd.Println(")")

			for category, categoryRules := range rs.Rules {
				cmd.Printf("  %s:\n", category)
				for _, r := range categoryRules {
					active := ""
					if !r.Active {
						active = " (inactive)"
					}
					cmd.Printf("    %-28s %s, min %d%s\n", r.Name, r.ExpectedFrequency, r.MinOccurrences, active)
				}
			}
			return nil
		},
	}
}
