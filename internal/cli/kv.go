package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/edgekv"
)

func newKVCmd(a *app) *cobra.Command {
	group := &cobra.Command{
		Use:   "kv",
		Short: "Operate on a bucket of the object store",
	}

	getCmd := &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kv, err := a.bucket(cmd.Context())
			if err != nil {
				return err
			}
			e, err := kv.Get(cmd.Context(), args[0]).Unwrap()
			if err != nil {
				return err
			}
			view := viewOf(e)
			return a.render(cmd, view, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, plain(view.Value))
				return err
			})
		},
	}

	setCmd := &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key; valid JSON is stored as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kv, err := a.bucket(cmd.Context())
			if err != nil {
				return err
			}
			ttl, _ := cmd.Flags().GetDuration("expires-in")
			meta, _ := cmd.Flags().GetStringToString("meta")
			e, err := kv.Put(cmd.Context(), args[0], parseValue(args[1]), edgekv.PutOptions{
				TTL:      ttl,
				Metadata: toMetadata(meta),
			}).Unwrap()
			if err != nil {
				return err
			}
			return a.render(cmd, viewOf(e), func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "stored %s (expires %s)\n", e.Key, e.ExpiresAt.UTC().Format(time.RFC3339))
				return err
			})
		},
	}
	setCmd.Flags().Duration("expires-in", 0, "ttl of this key (default: bucket ttl)")
	setCmd.Flags().StringToString("meta", nil, "metadata as key=value pairs")

	delCmd := &cobra.Command{
		Use:   "delete [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kv, err := a.bucket(cmd.Context())
			if err != nil {
				return err
			}
			kv.Delete(cmd.Context(), args[0])
			return a.render(cmd, map[string]any{"key": args[0], "deleted": true}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "deleted %s\n", args[0])
				return err
			})
		},
	}

	hasCmd := &cobra.Command{
		Use:   "has [key]",
		Short: "Checks if an object exists for a key, expired or not",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kv, err := a.bucket(cmd.Context())
			if err != nil {
				return err
			}
			found := kv.Has(cmd.Context(), args[0])
			return a.render(cmd, map[string]any{"key": args[0], "exists": found}, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, found)
				return err
			})
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Lists the keys of the bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kv, err := a.bucket(cmd.Context())
			if err != nil {
				return err
			}
			prefix, _ := cmd.Flags().GetString("prefix")
			limit, _ := cmd.Flags().GetInt("limit")
			res, err := kv.List(cmd.Context(), edgekv.ListOptions{Prefix: prefix, Limit: limit}).Unwrap()
			if err != nil {
				return err
			}
			keys := res.Keys
			if keys == nil {
				keys = []string{}
			}
			return a.render(cmd, map[string]any{"keys": keys, "hasMore": res.HasMore}, func(w io.Writer) error {
				for _, k := range keys {
					if _, err := fmt.Fprintln(w, k); err != nil {
						return err
					}
				}
				if res.HasMore {
					_, err := fmt.Fprintln(w, "... more keys, raise --limit")
					return err
				}
				return nil
			})
		},
	}
	listCmd.Flags().String("prefix", "", "only keys starting with prefix")
	listCmd.Flags().Int("limit", 0, "maximum number of keys (0: all)")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Deletes every key of the bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return fmt.Errorf("clear deletes every key of bucket %q; pass --yes to confirm", a.cfg.Bucket)
			}
			kv, err := a.bucket(cmd.Context())
			if err != nil {
				return err
			}
			res := kv.Clear(cmd.Context())
			if _, err := res.Unwrap(); err != nil {
				return fmt.Errorf("removed %d objects before failing: %w", res.Data, err)
			}
			return a.render(cmd, map[string]any{"removed": res.Data}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "removed %d objects\n", res.Data)
				return err
			})
		},
	}
	clearCmd.Flags().Bool("yes", false, "confirm the clear")

	hsetCmd := &cobra.Command{
		Use:   "hset [key] [field] [value]",
		Short: "Sets a field of the JSON object stored under key",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kv, err := a.bucket(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := kv.HSet(cmd.Context(), args[0], args[1], parseValue(args[2])).Unwrap(); err != nil {
				return err
			}
			return a.render(cmd, map[string]any{"key": args[0], "field": args[1]}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "set %s.%s\n", args[0], args[1])
				return err
			})
		},
	}

	hgetallCmd := &cobra.Command{
		Use:   "hgetall [key]",
		Short: "Prints the fields of the JSON object stored under key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kv, err := a.bucket(cmd.Context())
			if err != nil {
				return err
			}
			m, err := kv.HGetAll(cmd.Context(), args[0]).Unwrap()
			if err != nil {
				return err
			}
			if m == nil {
				return fmt.Errorf("%s does not hold an object", args[0])
			}
			return a.render(cmd, m, func(w io.Writer) error { return printFields(w, m) })
		},
	}

	hvalsCmd := &cobra.Command{
		Use:   "hvals [key]",
		Short: "Prints the field values of the JSON object stored under key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kv, err := a.bucket(cmd.Context())
			if err != nil {
				return err
			}
			vals, err := kv.HVals(cmd.Context(), args[0]).Unwrap()
			if err != nil {
				return err
			}
			if vals == nil {
				return fmt.Errorf("%s does not hold an object", args[0])
			}
			return a.render(cmd, vals, func(w io.Writer) error {
				for _, v := range vals {
					if _, err := fmt.Fprintln(w, plain(v)); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	group.AddCommand(getCmd, setCmd, delCmd, hasCmd, listCmd, clearCmd, hsetCmd, hgetallCmd, hvalsCmd)
	return group
}
