package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/smkit/smkit/pkg/gateway"
	"github.com/smkit/smkit/pkg/protocol"
	"github.com/smkit/smkit/pkg/sdkerr"
)

var outputFormats = []string{"json", "yaml", "env", "table", "none"}

var (
	errorColor  = color.New(color.FgRed, color.Bold)
	headerColor = color.New(color.Bold)
	dimColor    = color.New(color.Faint)
)

func validOutput(format string) bool {
	for _, f := range outputFormats {
		if f == format {
			return true
		}
	}
	return false
}

// PrintError writes err to w in red. Remote failures print the engine's
// message only; timeouts point at --timeout.
func PrintError(w io.Writer, err error) {
	msg := err.Error()
	var se *sdkerr.Error
	switch {
	case errors.As(err, &se) && se.Kind == sdkerr.KindRemote:
		msg = se.Message
	case gateway.IsDeadline(err):
		msg = "the engine did not answer within --timeout"
	}
	errorColor.Fprint(w, "Error: ")
	fmt.Fprintln(w, msg)
}

// render writes v in the requested format.
func render(w io.Writer, format string, v interface{}) error {
	switch format {
	case "none":
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		return renderYAML(w, v)
	case "env":
		secrets, ok := secretsOf(v)
		if !ok {
			return errors.New("env output is only available for secrets")
		}
		return renderEnv(w, secrets)
	case "table":
		t, ok := tableOf(v)
		if !ok {
			return render(w, "json", v)
		}
		return renderTable(w, t)
	}
	return fmt.Errorf("unknown output format %q", format)
}

// renderYAML goes through JSON so keys keep their wire names.
func renderYAML(w io.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

var posixName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func renderEnv(w io.Writer, secrets []protocol.SecretResponse) error {
	var invalid []string
	for _, s := range secrets {
		if !posixName.MatchString(s.Key) {
			invalid = append(invalid, s.Key)
			continue
		}
		if _, err := fmt.Fprintf(w, "%s=%s\n", s.Key, quoteEnv(s.Value)); err != nil {
			return err
		}
	}
	for _, key := range invalid {
		fmt.Fprintf(w, "# %s is not a valid POSIX environment variable name\n", key)
	}
	return nil
}

func quoteEnv(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "$", `\$`, "`", "\\`")
	return `"` + r.Replace(v) + `"`
}

func secretsOf(v interface{}) ([]protocol.SecretResponse, bool) {
	switch s := v.(type) {
	case *protocol.SecretResponse:
		return []protocol.SecretResponse{*s}, true
	case *protocol.SecretsResponse:
		return s.Data, true
	case []protocol.SecretResponse:
		return s, true
	case *protocol.SecretsSyncResponse:
		return s.Secrets, true
	}
	return nil, false
}

type table struct {
	header []string
	rows   [][]string
}

func tableOf(v interface{}) (table, bool) {
	if secrets, ok := secretsOf(v); ok {
		t := table{header: []string{"ID", "KEY", "VALUE", "PROJECT", "REVISED"}}
		for _, s := range secrets {
			project := ""
			if s.ProjectID != nil {
				project = s.ProjectID.String()
			}
			t.rows = append(t.rows, []string{s.ID.String(), s.Key, s.Value, project, s.RevisionDate.Format(time.RFC3339)})
		}
		return t, true
	}

	switch r := v.(type) {
	case *protocol.ProjectResponse:
		return projectsTable([]protocol.ProjectResponse{*r}), true
	case *protocol.ProjectsResponse:
		return projectsTable(r.Data), true
	case *protocol.SecretsDeleteResponse:
		t := table{header: []string{"ID", "RESULT"}}
		for _, d := range r.Data {
			t.rows = append(t.rows, []string{d.ID.String(), deleteResult(d.Error)})
		}
		return t, true
	case *protocol.ProjectsDeleteResponse:
		t := table{header: []string{"ID", "RESULT"}}
		for _, d := range r.Data {
			t.rows = append(t.rows, []string{d.ID.String(), deleteResult(d.Error)})
		}
		return t, true
	case profileList:
		t := table{header: []string{"PROFILE", "KEY", "VALUE"}}
		for _, p := range r {
			t.rows = append(t.rows, []string{p.Name, p.Key, p.Value})
		}
		return t, true
	}
	return table{}, false
}

func projectsTable(projects []protocol.ProjectResponse) table {
	t := table{header: []string{"ID", "NAME", "REVISED"}}
	for _, p := range projects {
		t.rows = append(t.rows, []string{p.ID.String(), p.Name, p.RevisionDate.Format(time.RFC3339)})
	}
	return t
}

func deleteResult(errMsg *string) string {
	if errMsg == nil {
		return "deleted"
	}
	return *errMsg
}

func renderTable(w io.Writer, t table) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, h := range t.header {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, headerColor.Sprint(h))
	}
	fmt.Fprintln(tw)
	for _, row := range t.rows {
		for i, cell := range row {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			if cell == "" {
				cell = dimColor.Sprint("-")
			}
			fmt.Fprint(tw, cell)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
