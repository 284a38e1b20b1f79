package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/edgekv/capability"
	"github.com/unkn0wn-root/edgekv/provider"
)

func newNSCmd(a *app) *cobra.Command {
	group := &cobra.Command{
		Use:   "ns",
		Short: "Operate on a namespace through the KV client",
		Long: `Operate on a namespace through the KV client. The native provider needs
--redis-addr; without it auto selects the api provider.`,
	}

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Prints the selected provider and namespace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.namespace(cmd.Context())
			if err != nil {
				return err
			}
			info := map[string]any{"provider": string(c.ProviderType()), "namespace": c.Namespace()}
			return a.render(cmd, info, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "provider=%s namespace=%s\n", c.ProviderType(), c.Namespace())
				return err
			})
		},
	}

	getCmd := &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.namespace(cmd.Context())
			if err != nil {
				return err
			}
			typ, _ := cmd.Flags().GetString("type")
			withMeta, _ := cmd.Flags().GetBool("metadata")
			opts := provider.GetOptions{Type: capability.ValueType(typ)}

			var out map[string]any
			if withMeta {
				vm, ok, err := c.GetWithMetadata(cmd.Context(), args[0], opts)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("key %q not found", args[0])
				}
				out = map[string]any{"key": args[0], "value": vm.Value, "metadata": vm.Metadata}
			} else {
				v, ok, err := c.Get(cmd.Context(), args[0], opts)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("key %q not found", args[0])
				}
				out = map[string]any{"key": args[0], "value": v}
			}
			return a.render(cmd, out, func(w io.Writer) error {
				if _, err := fmt.Fprintln(w, plain(out["value"])); err != nil {
					return err
				}
				if m, ok := out["metadata"].(map[string]any); ok && m != nil {
					return printFields(w, m)
				}
				return nil
			})
		},
	}
	getCmd.Flags().String("type", "text", "value type (text, json, bytes)")
	getCmd.Flags().Bool("metadata", false, "also print the metadata")

	setCmd := &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.namespace(cmd.Context())
			if err != nil {
				return err
			}
			ttl, _ := cmd.Flags().GetInt64("expiration-ttl")
			at, _ := cmd.Flags().GetInt64("expiration")
			meta, _ := cmd.Flags().GetStringToString("meta")

			opts := provider.SetOptions{ExpirationTTL: ttl, Metadata: toMetadata(meta)}
			if at > 0 {
				opts.Expiration = provider.At(at)
			}
			if err := c.Set(cmd.Context(), args[0], args[1], opts); err != nil {
				return err
			}
			return a.render(cmd, map[string]any{"key": args[0], "stored": true}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "stored %s\n", args[0])
				return err
			})
		},
	}
	setCmd.Flags().Int64("expiration-ttl", 0, "seconds until the key expires")
	setCmd.Flags().Int64("expiration", 0, "unix time (seconds) at which the key expires")
	setCmd.Flags().StringToString("meta", nil, "metadata as key=value pairs")

	delCmd := &cobra.Command{
		Use:   "delete [key]",
		Short: "Deletes a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.namespace(cmd.Context())
			if err != nil {
				return err
			}
			if err := c.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			return a.render(cmd, map[string]any{"key": args[0], "deleted": true}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "deleted %s\n", args[0])
				return err
			})
		},
	}

	hsetCmd := &cobra.Command{
		Use:   "hset [key] [field] [value]",
		Short: "Sets a field of the JSON object stored under key",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.namespace(cmd.Context())
			if err != nil {
				return err
			}
			if err := c.HSet(cmd.Context(), args[0], args[1], parseValue(args[2])); err != nil {
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
			c, err := a.namespace(cmd.Context())
			if err != nil {
				return err
			}
			m, ok, err := c.HGetAll(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
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
			c, err := a.namespace(cmd.Context())
			if err != nil {
				return err
			}
			vals, ok, err := c.HVals(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
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

	group.AddCommand(infoCmd, getCmd, setCmd, delCmd, hsetCmd, hgetallCmd, hvalsCmd)
	return group
}
