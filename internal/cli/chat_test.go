package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boshilin123/chatbot-circuit-diagram/config"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/logger"
)

const testCatalog = `id,hierarchyPath,fileName
1,Vehicle->RedRock->Hawk,RedRock_Hawk_fuse box diagram
2,Vehicle->RedRock->Genlyon,RedRock_Genlyon_instrument wiring
3,Vehicle->Dongfeng->Tianlong KL,Dongfeng_Tianlong KL_fuse layout
4,Engine->Cummins,Cummins_CM2880_ECU pin definition
5,Vehicle->Foton->Auman,Foton_Auman_fuse box
6,Vehicle->Foton->Auman,Foton_Auman_instrument wiring
7,Vehicle->Foton->Aumark,Foton_Aumark_ECU pin definition
`

func newTestApp(t *testing.T) *app {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "catalog.csv"), []byte(testCatalog), 0644))

	a, err := buildApp(context.Background(), config.DefaultConfig(), dir, logger.NewNop(), nil)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestBuildApp(t *testing.T) {
	a := newTestApp(t)
	assert.Equal(t, 7, a.indexed.Documents)
	assert.False(t, a.indexed.FromSnapshot)
	assert.Nil(t, a.understander)
	assert.Nil(t, a.redis)
}

func TestDialogueLoop(t *testing.T) {
	color.NoColor = true
	a := newTestApp(t)

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	d := &dialogue{chat: a.chat, out: &out, session: "cli-test"}

	input := strings.Join([]string{"Foton", "9", "1", "RedRock Hawk fuse", "quit", "never read"}, "\n")
	require.NoError(t, d.loop(cmd, strings.NewReader(input)))

	got := out.String()
	assert.Contains(t, got, "1. [ID: 5] Foton_Auman_fuse box")
	assert.Contains(t, got, "No option 9.")
	assert.Contains(t, got, "[ID: 5] Foton_Auman_fuse box\n  Vehicle->Foton->Auman")
	assert.Contains(t, got, "[ID: 1] RedRock_Hawk_fuse box diagram")
	assert.NotContains(t, got, "never read")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{500 * time.Millisecond, "<1s"},
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m5s"},
		{2*time.Hour + 7*time.Minute, "2h7m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.in))
	}
}
