package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jacksonlee411/navtree/internal/config"
	"github.com/jacksonlee411/navtree/modules/navigation/domain/menutree"
	"github.com/jacksonlee411/navtree/modules/navigation/domain/ports"
	"github.com/jacksonlee411/navtree/modules/navigation/domain/types"
	"github.com/jacksonlee411/navtree/modules/navigation/infrastructure/fixture"
	"github.com/jacksonlee411/navtree/modules/navigation/infrastructure/persistence"
)

func main() {
	if len(os.Args) < 2 {
		fatalf("usage: menutool <validate|seed|tree|export|rls-smoke> [args]")
	}

	switch os.Args[1] {
	case "validate":
		validateCmd(os.Args[2:])
	case "seed":
		seedCmd(os.Args[2:])
	case "tree":
		treeCmd(os.Args[2:])
	case "export":
		exportCmd(os.Args[2:])
	case "rls-smoke":
		rlsSmoke(os.Args[2:])
	default:
		fatalf("unknown subcommand: %s", os.Args[1])
	}
}

func validateCmd(args []string) {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var path string
	fs.StringVar(&path, "f", "", "fixture file")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	if path == "" {
		fatalf("missing -f")
	}

	f, err := fixture.Load(path)
	if err != nil {
		fatal(err)
	}
	if !report(os.Stdout, f.Menus) {
		os.Exit(1)
	}
}

// report prints the anomalies of menus and returns false when any cycle
// exists. Orphans and duplicates are warnings.
func report(w io.Writer, menus []types.MenuRecord) bool {
	built := menutree.Build(menus)
	for _, o := range built.Orphans {
		_, _ = fmt.Fprintf(w, "orphan: %s (missing parent %s)\n", o.NodeID, o.ParentID)
	}
	for _, d := range built.Duplicates {
		_, _ = fmt.Fprintf(w, "duplicate: %s\n", d.NodeID)
	}
	for _, c := range built.Cycles {
		_, _ = fmt.Fprintf(w, "cycle: %s (promoted %s)\n", strings.Join(c.NodeIDs, " -> "), c.PromotedID)
	}
	_, _ = fmt.Fprintf(w, "%d menus, %d roots, %d orphans, %d duplicates, %d cycles\n",
		len(menus), len(built.Roots), len(built.Orphans), len(built.Duplicates), len(built.Cycles))
	return len(built.Cycles) == 0
}

func seedCmd(args []string) {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var url, path, tenant string
	fs.StringVar(&url, "url", "", "postgres connection string (default from env)")
	fs.StringVar(&path, "f", "", "fixture file")
	fs.StringVar(&tenant, "tenant", "", "tenant uuid (default: fixture tenant_id)")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	if path == "" {
		fatalf("missing -f")
	}
	f, err := fixture.Load(path)
	if err != nil {
		fatal(err)
	}
	if tenant == "" {
		tenant = f.TenantID
	}
	if tenant == "" {
		fatalf("missing -tenant")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	conn := connect(ctx, url)
	defer conn.Close(context.Background())

	n, err := seed(ctx, persistence.NewMenuPGStore(conn), tenant, f.Menus)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("[seed] %d menus inserted for %s\n", n, tenant)
}

// seed inserts menus parents first. It stops at the first failure; menus
// already inserted stay.
func seed(ctx context.Context, store ports.MenuRecordWriter, tenantID string, menus []types.MenuRecord) (int, error) {
	ordered, err := fixture.InsertOrder(menus)
	if err != nil {
		return 0, err
	}
	for i, m := range ordered {
		if _, err := store.Create(ctx, tenantID, m); err != nil {
			return i, fmt.Errorf("menu %s: %w", m.ID, err)
		}
	}
	return len(ordered), nil
}

func treeCmd(args []string) {
	fs := flag.NewFlagSet("tree", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var url, tenant string
	fs.StringVar(&url, "url", "", "postgres connection string (default from env)")
	fs.StringVar(&tenant, "tenant", "", "tenant uuid")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	if tenant == "" {
		fatalf("missing -tenant")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	conn := connect(ctx, url)
	defer conn.Close(context.Background())

	roots, err := persistence.NewMenuPGStore(conn).FetchTree(ctx, tenant)
	if err != nil {
		fatal(err)
	}
	printTree(os.Stdout, roots)
}

func printTree(w io.Writer, roots []*types.MenuTreeNode) {
	menutree.Walk(roots, func(n *types.MenuTreeNode, depth int) bool {
		var flags []string
		if n.Disabled {
			flags = append(flags, "disabled")
		}
		if n.Hidden {
			flags = append(flags, "hidden")
		}
		line := fmt.Sprintf("%s%s [%s] %s %s", strings.Repeat("  ", depth), n.ID, n.Type, n.Name, n.Path)
		if len(flags) > 0 {
			line += " (" + strings.Join(flags, ",") + ")"
		}
		_, _ = fmt.Fprintln(w, strings.TrimRight(line, " "))
		return true
	})
}

func exportCmd(args []string) {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var url, tenant, out string
	fs.StringVar(&url, "url", "", "postgres connection string (default from env)")
	fs.StringVar(&tenant, "tenant", "", "tenant uuid")
	fs.StringVar(&out, "o", "", "output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	if tenant == "" {
		fatalf("missing -tenant")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	conn := connect(ctx, url)
	defer conn.Close(context.Background())

	f, err := export(ctx, persistence.NewMenuPGStore(conn), tenant)
	if err != nil {
		fatal(err)
	}

	var w io.Writer = os.Stdout
	if out != "" {
		file, err := os.Create(out)
		if err != nil {
			fatal(err)
		}
		defer file.Close()
		w = file
	}
	if err := fixture.Write(w, f); err != nil {
		fatal(err)
	}
}

const exportPageLimit = 200

func export(ctx context.Context, store ports.MenuReader, tenantID string) (fixture.File, error) {
	f := fixture.File{Version: 1, TenantID: tenantID}
	cursor := ""
	for {
		page, err := store.List(ctx, types.MenuQuery{TenantID: tenantID}, cursor, exportPageLimit)
		if err != nil {
			return fixture.File{}, err
		}
		f.Menus = append(f.Menus, page.Records...)
		if page.NextCursor == "" {
			return f, nil
		}
		if page.NextCursor == cursor {
			return fixture.File{}, types.ErrCursorStalled
		}
		cursor = page.NextCursor
	}
}

// rlsSmoke checks that navigation.menus is isolated per tenant when queried
// through a role without BYPASSRLS.
func rlsSmoke(args []string) {
	fs := flag.NewFlagSet("rls-smoke", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var url string
	fs.StringVar(&url, "url", "", "postgres connection string (default from env)")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn := connect(ctx, url)
	defer conn.Close(context.Background())

	if err := tryEnsureRole(ctx, conn, "app_nobypassrls"); err != nil {
		fatal(err)
	}

	tenantA := "00000000-0000-0000-0000-00000000000a"
	tenantB := "00000000-0000-0000-0000-00000000000b"

	tx, err := conn.Begin(ctx)
	if err != nil {
		fatal(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SET LOCAL ROLE app_nobypassrls;`); err != nil {
		fatal(err)
	}
	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantA); err != nil {
		fatal(err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO navigation.menus (tenant_uuid, id, name, menu_type) VALUES ($1, 'rls-smoke', 'smoke', 'menu');`, tenantA); err != nil {
		fatal(err)
	}

	var count int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM navigation.menus WHERE id = 'rls-smoke';`).Scan(&count); err != nil {
		fatal(err)
	}
	if count != 1 {
		fatalf("expected count=1 under tenant A, got %d", count)
	}

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantB); err != nil {
		fatal(err)
	}
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM navigation.menus WHERE id = 'rls-smoke';`).Scan(&count); err != nil {
		fatal(err)
	}
	if count != 0 {
		fatalf("expected count=0 under tenant B, got %d", count)
	}

	fmt.Println("[rls-smoke] OK")
}

func connect(ctx context.Context, url string) *pgx.Conn {
	if url == "" {
		url = config.DSNFromEnv()
	}
	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		fatal(err)
	}
	return conn
}

func tryEnsureRole(ctx context.Context, conn *pgx.Conn, role string) error {
	if !validSQLIdent(role) {
		return fmt.Errorf("invalid role: %s", role)
	}

	stmt := fmt.Sprintf(`DO $$
BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = '%s') THEN
    EXECUTE 'CREATE ROLE %s NOBYPASSRLS';
  END IF;
END
$$;`, role, role)
	if _, err := conn.Exec(ctx, stmt); err != nil {
		return err
	}
	_, _ = conn.Exec(ctx, `GRANT USAGE ON SCHEMA navigation TO `+role+`;`)
	_, _ = conn.Exec(ctx, `GRANT SELECT, INSERT, UPDATE, DELETE ON ALL TABLES IN SCHEMA navigation TO `+role+`;`)
	return nil
}

var reSQLIdent = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func validSQLIdent(s string) bool {
	return reSQLIdent.MatchString(s)
}

func fatal(err error) {
	if err == nil {
		os.Exit(1)
	}
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	fatalf("%v", err)
}

func fatalf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
