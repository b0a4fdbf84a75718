package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	shp "github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/require"

	"propertyregistry/internal/ledger"
	"propertyregistry/internal/parcels"
)

const (
	admin1 = "0x00000000000000000000000000000000000000a1"
	admin2 = "0x00000000000000000000000000000000000000a2"
	owner  = "0x0000000000000000000000000000000000000001"
	buyer  = "0x0000000000000000000000000000000000000002"
	heir   = "0x0000000000000000000000000000000000000003"
)

type cli struct {
	t  *testing.T
	db string
}

func newCLI(t *testing.T) *cli {
	return &cli{t: t, db: filepath.Join(t.TempDir(), "registry.db")}
}

// run invokes the CLI against the test ledger and returns stdout, stderr and the exit code.
func (c *cli) run(args ...string) (string, string, int) {
	c.t.Helper()
	devNull, err := os.Open(os.DevNull)
	require.NoError(c.t, err)
	defer devNull.Close()

	var stdout, stderr bytes.Buffer
	full := append([]string{"--db", c.db, "--log-level", "error"}, args...)
	code := run(context.Background(), full, devNull, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func (c *cli) ok(args ...string) string {
	c.t.Helper()
	out, errOut, code := c.run(args...)
	require.Zero(c.t, code, "args %v\nstderr: %s", args, errOut)
	return out
}

func (c *cli) bootstrap() {
	c.t.Helper()
	c.ok("init", "--admin1", admin1, "--admin2", admin2)
	c.ok("register", "--as", admin1,
		"--owner-name", "Nila Menon", "--gov-uid", "UID-55", "--owner-account", owner,
		"--addr1", "21 Beach Road", "--city", "Kochi", "--state", "KL", "--country", "IN", "--pin", "682001",
		"--cost", "1000")
}

func TestCLI_SaleAndSplitFlow(t *testing.T) {
	c := newCLI(t)
	c.bootstrap()

	require.Contains(t, c.ok("init", "--admin1", buyer, "--admin2", buyer), "already initialized")

	out := c.ok("show", "0")
	require.Contains(t, out, "Nila Menon")
	require.Contains(t, out, "Kochi, KL 682001")
	require.Contains(t, out, "Not for sale")

	require.Contains(t, c.ok("sell", "0", "--as", owner, "--price", "500"), "For sale at 500")

	_, errOut, code := c.run("buy", "0", "--as", buyer, "--name", "Arun", "--gov-uid", "UID-9", "--account", heir, "--pay", "499")
	require.Equal(t, 6, code)
	require.Contains(t, errOut, "below sale price 500")

	require.Contains(t, c.ok("buy", "0", "--as", buyer, "--name", "Arun", "--gov-uid", "UID-9", "--account", heir, "--pay", "600"), "Bought property #0")
	require.Contains(t, c.ok("balance", owner), ": 500")
	require.Contains(t, c.ok("balance", "--as", buyer), ": 100")

	_, _, code = c.run("buy", "0", "--as", buyer, "--name", "Arun", "--gov-uid", "UID-9", "--account", heir, "--pay", "600")
	require.Equal(t, 5, code)

	_, _, code = c.run("split", "0", "30", "--as", heir)
	require.Equal(t, 3, code)

	require.Contains(t, c.ok("split", "0", "30", "--as", admin2), "into #1 and #2")
	require.Contains(t, c.ok("show", "0"), "Retired (split)")
	require.Contains(t, c.ok("show", "1"), "Cost              : 300")
	require.Contains(t, c.ok("show", "2"), "Split From        : #0")

	hist := c.ok("history", "0")
	for _, op := range []string{"register", "set_sellable", "buy", "split"} {
		require.Contains(t, hist, op)
	}

	list := c.ok("list")
	require.Contains(t, list, "(3 of 3 records)")
	require.Contains(t, c.ok("list", "--offset", "2"), "(1 of 3 records)")
}

func TestCLI_Admins(t *testing.T) {
	c := newCLI(t)
	c.bootstrap()

	out := c.ok("admins")
	require.Contains(t, out, admin1)
	require.Contains(t, out, admin2)
	require.Contains(t, c.ok("admins", owner), "is admin: false")

	_, _, code := c.run("update-admins", owner, buyer, "--as", owner)
	require.Equal(t, 3, code)

	c.ok("update-admins", owner, buyer, "--as", admin1)
	require.Contains(t, c.ok("admins", owner), "is admin: true")
	require.Contains(t, c.ok("admins", admin1), "is admin: false")
}

func TestCLI_InputErrors(t *testing.T) {
	c := newCLI(t)
	c.bootstrap()

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"unknown record", []string{"show", "7"}, 4},
		{"bad id", []string{"show", "seven"}, 2},
		{"bad percentage", []string{"split", "0", "half", "--as", admin1}, 2},
		{"percentage out of range", []string{"split", "0", "100", "--as", admin1}, 2},
		{"missing caller", []string{"sell", "0"}, 2},
		{"not the owner", []string{"sell", "0", "--as", buyer}, 3},
		{"malformed balance account", []string{"balance", "alice"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errOut, code := c.run(tt.args...)
			require.Equal(t, tt.want, code, errOut)
			require.Contains(t, errOut, "error:")
		})
	}
}

func TestCLI_BrowseWithoutTerminalPrintsList(t *testing.T) {
	c := newCLI(t)
	c.bootstrap()

	out := c.ok("browse")
	require.Contains(t, out, "not supported on this terminal")
	require.Contains(t, out, "Nila Menon")
}

func TestCLI_Import(t *testing.T) {
	c := newCLI(t)
	c.ok("init", "--admin1", admin1, "--admin2", admin2)

	path := filepath.Join(t.TempDir(), "parcels.shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("OWNER", 40),
		shp.StringField("GOV_UID", 20),
		shp.StringField("ADDR1", 40),
		shp.StringField("CITY", 20),
		shp.StringField("STATE", 10),
		shp.StringField("COUNTRY", 10),
		shp.StringField("PIN", 10),
		shp.StringField("COST", 20),
		shp.StringField("ACCOUNT", 42),
	}))
	rows := [][]string{
		{"Devi", "U-1", "1 Main St", "Salem", "TN", "IN", "636001", "700", owner},
		{"Kiran", "U-2", "2 Main St", "Salem", "TN", "IN", "636001", "12.5", owner},
		{"Mala", "U-3", "3 Main St", "Salem", "TN", "IN", "636001", "900", "not-an-account"},
	}
	for i, r := range rows {
		x := float64(i)
		poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{{{X: x, Y: 0}, {X: x, Y: 1}, {X: x + 1, Y: 1}, {X: x, Y: 0}}}))
		n := int(w.Write(&poly))
		for f, v := range r {
			require.NoError(t, w.WriteAttribute(n, f, v))
		}
	}
	w.Close()
	base := strings.TrimSuffix(path, "shp")
	require.NoError(t, os.Rename(strings.TrimSuffix(base, ".")+"dbf", base+"dbf"))

	out := c.ok("import", path, "--dry-run", "--field", "owner_name=OWNER")
	require.Contains(t, out, "row 0 ok, 1 part(s), (0.000000, 0.000000)-(1.000000, 1.000000)")
	require.Contains(t, out, "Validated 1 of 3 parcels (2 skipped)")
	require.Contains(t, c.ok("list"), "No properties")

	_, _, code := c.run("import", path, "--field", "owner_name=OWNER", "--as", owner)
	require.Equal(t, 3, code)

	out = c.ok("import", path, "--field", "owner_name=OWNER", "--as", admin1)
	require.Contains(t, out, "row 0 -> property #0, 1 part(s)")
	require.Contains(t, out, "Imported 1 of 3 parcels (2 skipped)")
	require.Contains(t, c.ok("show", "0"), "Devi")

	_, _, code = c.run("import", path, "--field", "colour=X", "--as", admin1)
	require.Equal(t, 2, code)
}

func TestCLI_ImportRejectsBadLayer(t *testing.T) {
	c := newCLI(t)
	c.ok("init", "--admin1", admin1, "--admin2", admin2)

	for _, arg := range []string{"x", "parcels.zip"} {
		_, stderr, code := c.run("import", arg, "--as", admin1)
		require.Equal(t, 2, code, arg)
		require.Contains(t, stderr, "not a .shp file", arg)
	}

	// Geometry without its attribute table.
	path := filepath.Join(t.TempDir(), "bare.shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 0, Y: 0}}}))
	w.Write(&poly)
	w.Close()

	_, stderr, code := c.run("import", path, "--as", admin1)
	require.Equal(t, 2, code)
	require.Contains(t, stderr, "attribute table")
	require.Contains(t, c.ok("list"), "No properties")
}

func TestApplyFieldOverrides(t *testing.T) {
	m, err := applyFieldOverrides(parcels.DefaultMapping(), []string{"Cost=APPRAISED", " pin_code = ZIP"})
	require.NoError(t, err)
	require.Equal(t, "APPRAISED", m.Cost)
	require.Equal(t, "ZIP", m.PinCode)
	require.Equal(t, "OWNER_NAME", m.OwnerName)

	_, err = applyFieldOverrides(parcels.DefaultMapping(), []string{"cost"})
	require.ErrorIs(t, err, ledger.ErrInvalidInput)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{ledger.Errorf(ledger.InvalidInput, "op", "x"), 2},
		{fmt.Errorf("wrapped: %w", ledger.Errorf(ledger.Unauthorized, "op", "x")), 3},
		{ledger.Errorf(ledger.NotFound, "op", "x"), 4},
		{ledger.Errorf(ledger.NotForSale, "op", "x"), 5},
		{ledger.Errorf(ledger.InsufficientPayment, "op", "x"), 6},
		{ledger.Wrap(ledger.StorageFailure, "op", errors.New("disk")), 1},
		{errors.New("flag parsing"), 1},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, exitCode(tt.err), "%v", tt.err)
	}
}
