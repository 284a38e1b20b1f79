package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/edgekv"
)

// render writes v as JSON or YAML, or calls text for the text format.
func (a *app) render(cmd *cobra.Command, v any, text func(w io.Writer) error) error {
	w := cmd.OutOrStdout()
	switch a.output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return text(w)
	}
}

type entryView struct {
	Key       string         `json:"key" yaml:"key"`
	Value     any            `json:"value" yaml:"value"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	ExpiresAt time.Time      `json:"expiresAt" yaml:"expiresAt"`
	CreatedAt time.Time      `json:"createdAt" yaml:"createdAt"`
	FromCache bool           `json:"fromCache" yaml:"fromCache"`
}

func viewOf(e edgekv.Entry) entryView {
	var v any
	if err := json.Unmarshal(e.Value, &v); err != nil {
		v = string(e.Value)
	}
	return entryView{
		Key:       e.Key,
		Value:     v,
		Metadata:  e.Metadata,
		ExpiresAt: e.ExpiresAt.UTC(),
		CreatedAt: e.CreatedAt.UTC(),
		FromCache: e.FromCache,
	}
}

// plain formats a decoded value for the text output: strings as is,
// anything else as compact JSON.
func plain(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func printFields(w io.Writer, m map[string]any) error {
	fields := make([]string, 0, len(m))
	for f := range m {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		if _, err := fmt.Fprintf(w, "%s=%s\n", f, plain(m[f])); err != nil {
			return err
		}
	}
	return nil
}

// parseValue keeps valid JSON as JSON; anything else is a string.
func parseValue(s string) any {
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	return s
}

func toMetadata(m map[string]string) map[string]any {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
