// Package output renders command results as a table for people or JSON
// for scripts.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/nhle/storefront/internal/catalog"
	"github.com/nhle/storefront/internal/model"
)

// Formats accepted by --format.
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// DefaultFormat is table on a terminal and json otherwise.
func DefaultFormat() string {
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return FormatTable
	}
	return FormatJSON
}

// IsInteractive reports whether stdin and stdout are both terminals.
func IsInteractive() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
}

// Printer writes results in one format.
type Printer struct {
	w      io.Writer
	format string
}

// New returns a Printer for format. An empty format means DefaultFormat.
func New(w io.Writer, format string) (*Printer, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = DefaultFormat()
	}
	if format != FormatTable && format != FormatJSON {
		return nil, fmt.Errorf("invalid --format %q (want table or json)", format)
	}
	return &Printer{w: w, format: format}, nil
}

// Format returns the resolved format.
func (p *Printer) Format() string { return p.format }

func (p *Printer) json(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *Printer) table(header string, rows [][]string) error {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	return tw.Flush()
}

// Notifications prints a notification list.
func (p *Printer) Notifications(ns []model.Notification) error {
	if p.format == FormatJSON {
		if ns == nil {
			ns = []model.Notification{}
		}
		return p.json(map[string]any{"notifications": ns})
	}
	if len(ns) == 0 {
		_, err := fmt.Fprintln(p.w, "No notifications.")
		return err
	}
	rows := make([][]string, len(ns))
	for i, n := range ns {
		rows[i] = []string{n.ID, n.Type.Label(), string(n.Status), timestamp(n.CreatedAt), n.Message}
	}
	return p.table("ID\tTYPE\tSTATUS\tCREATED\tMESSAGE", rows)
}

// Count prints a single labelled number.
func (p *Printer) Count(label string, n int) error {
	if p.format == FormatJSON {
		return p.json(map[string]int{label: n})
	}
	_, err := fmt.Fprintf(p.w, "%d\n", n)
	return err
}

// Message prints a confirmation line, or {"status": msg} in JSON.
func (p *Printer) Message(msg string) error {
	if p.format == FormatJSON {
		return p.json(map[string]string{"status": msg})
	}
	_, err := fmt.Fprintln(p.w, msg)
	return err
}

// User prints the signed-in user and, when known, the token expiry.
func (p *Printer) User(u model.User, expires time.Time) error {
	if p.format == FormatJSON {
		out := map[string]any{"user": u}
		if !expires.IsZero() {
			out["expiresAt"] = expires.UTC().Format(time.RFC3339)
		}
		return p.json(out)
	}
	rows := [][]string{{u.ID.String(), u.Email, u.DisplayName(), u.Role, timestamp(expires)}}
	return p.table("ID\tEMAIL\tNAME\tROLE\tEXPIRES", rows)
}

// Cart prints cart lines and the total.
func (p *Printer) Cart(c model.Cart) error {
	if p.format == FormatJSON {
		items := c.Items
		if items == nil {
			items = []model.CartItem{}
		}
		return p.json(map[string]any{
			"items":     items,
			"itemCount": c.ItemCount(),
			"total":     c.Total(),
		})
	}
	if len(c.Items) == 0 {
		_, err := fmt.Fprintln(p.w, "Your cart is empty.")
		return err
	}
	rows := make([][]string, 0, len(c.Items)+1)
	for _, it := range c.Items {
		rows = append(rows, []string{
			it.ID.String(), it.ProductID.String(), it.Name,
			fmt.Sprintf("%d", it.Quantity), money(it.UnitPrice), money(it.Subtotal()),
		})
	}
	rows = append(rows, []string{"", "", "TOTAL", fmt.Sprintf("%d", c.ItemCount()), "", money(c.Total())})
	return p.table("ITEM\tPRODUCT\tNAME\tQTY\tPRICE\tSUBTOTAL", rows)
}

// Categories prints the visible rows of the category tree, indented by depth.
func (p *Printer) Categories(rows []catalog.Row) error {
	if p.format == FormatJSON {
		type row struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			Depth       int    `json:"depth"`
			HasChildren bool   `json:"hasChildren"`
		}
		out := make([]row, len(rows))
		for i, r := range rows {
			out[i] = row{ID: r.Category.ID.String(), Name: r.Category.Name, Depth: r.Depth, HasChildren: r.HasChildren}
		}
		return p.json(map[string]any{"categories": out})
	}
	table := make([][]string, len(rows))
	for i, r := range rows {
		marker := "  "
		if r.HasChildren {
			marker = "+ "
			if r.Expanded {
				marker = "- "
			}
		}
		table[i] = []string{r.Category.ID.String(), strings.Repeat("  ", r.Depth) + marker + r.Category.Name}
	}
	return p.table("ID\tCATEGORY", table)
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
