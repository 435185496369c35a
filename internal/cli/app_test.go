package cli

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/dmitrijs2005/rosterkeeper/internal/config"
	"github.com/dmitrijs2005/rosterkeeper/internal/kvstore"
	"github.com/dmitrijs2005/rosterkeeper/internal/logging"
	"github.com/dmitrijs2005/rosterkeeper/internal/services"
	"github.com/stretchr/testify/require"
)

const strongPassword = "Tr0ub4dor&3!!"

// newTestApp builds an App over an in-memory store. input feeds the line
// prompts.
func newTestApp(t *testing.T, input string) (*App, *bytes.Buffer) {
	t.Helper()
	ctx := context.Background()

	store, err := kvstore.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	roster := services.NewRosterService(store, logging.Discard())
	require.NoError(t, roster.Open(ctx))

	oldSpinner := spinnerEnabled
	spinnerEnabled = false
	t.Cleanup(func() { spinnerEnabled = oldSpinner })

	out := &bytes.Buffer{}
	return &App{
		config: &config.Config{DatabasePath: ":memory:"},
		store:  store,
		roster: roster,
		log:    logging.Discard(),
		reader: bufio.NewReader(strings.NewReader(input)),
		out:    out,
	}, out
}

// stubPasswords makes getPassword return the given passwords in order.
func stubPasswords(t *testing.T, passwords ...string) {
	t.Helper()
	orig := getPassword
	t.Cleanup(func() { getPassword = orig })
	getPassword = func(_ io.Writer, _ string) ([]byte, error) {
		if len(passwords) == 0 {
			return nil, io.EOF
		}
		pw := passwords[0]
		passwords = passwords[1:]
		return []byte(pw), nil
	}
}

func silencePrintln(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		lines = append(lines, strings.TrimSpace(fmt.Sprintln(a...)))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &lines
}
