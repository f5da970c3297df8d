package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	client "github.com/peteraglen/crudy-go-client"
)

// maxConcurrentLookups bounds the requests in flight for one `one` command.
const maxConcurrentLookups = 4

var errInvalidJSON = errors.New("argument is not valid JSON")

func (a *app) getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "Call an endpoint and print its envelope data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := a.resolve(args[0])
			if err != nil {
				return err
			}

			data, err := a.client.Get(cmd.Context(), url, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}
}

func (a *app) allCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "all [key=value...]",
		Short: "List every matching resource",
		RunE: func(cmd *cobra.Command, args []string) error {
			keywords, err := parseKeywords(args)
			if err != nil {
				return err
			}

			items, err := a.resource.All(cmd.Context(), keywords)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), items)
		},
	}
}

func (a *app) pageCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "page <n> <size> [key=value...]",
		Short: "List one page of matching resources",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("page number: %w", err)
			}
			size, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("page size: %w", err)
			}
			keywords, err := parseKeywords(args[2:])
			if err != nil {
				return err
			}

			items, err := a.resource.Page(cmd.Context(), n, size, keywords)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), items)
		},
	}
}

func (a *app) oneCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "one <id...>",
		Short: "Fetch resources by id",
		Long:  "Fetch resources by id. Several ids are looked up concurrently and printed in argument order.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				item, err := a.resource.One(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), item)
			}

			items := make([]json.RawMessage, len(args))

			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(maxConcurrentLookups)
			for i, id := range args {
				i, id := i, id
				g.Go(func() error {
					item, err := a.resource.One(ctx, id)
					if err != nil {
						return fmt.Errorf("id %s: %w", id, err)
					}
					items[i] = item
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), items)
		},
	}
}

func (a *app) countCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "count [key=value...]",
		Short: "Count matching resources",
		RunE: func(cmd *cobra.Command, args []string) error {
			keywords, err := parseKeywords(args)
			if err != nil {
				return err
			}

			n, err := a.resource.Count(cmd.Context(), keywords)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), n)
		},
	}
}

func (a *app) saveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "save <json>",
		Short: "Create or update a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !json.Valid([]byte(args[0])) {
				return errInvalidJSON
			}

			saved, err := a.resource.Save(cmd.Context(), json.RawMessage(args[0]))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), saved)
		},
	}
}

func (a *app) deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a resource by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deleted, err := a.resource.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), deleted)
		},
	}
}

func (a *app) uploadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <path> <file>",
		Short: "Upload a file and print the identifier it was stored under",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := a.resolve(args[0])
			if err != nil {
				return err
			}

			content, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}

			id, err := a.client.Upload(cmd.Context(), url, content)
			if err != nil {
				return err
			}

			a.log.Info().Str("file", args[1]).Int("bytes", len(content)).Str("id", id).Msg("uploaded")
			return printJSON(cmd.OutOrStdout(), id)
		},
	}
}

func versionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// Overrides the root setup so version works without any configuration.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func parseKeywords(args []string) (client.Keywords, error) {
	if len(args) == 0 {
		return nil, nil
	}

	keywords := make(client.Keywords, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("keyword %q must be key=value", arg)
		}
		keywords[key] = value
	}

	return keywords, nil
}
