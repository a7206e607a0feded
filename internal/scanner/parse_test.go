package scanner

import (
	"errors"
	"testing"

	"github.com/productdevbook/whichport/internal/listener"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortFromEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		want     uint16
		wantErr  bool
	}{
		{"*:8080", 8080, false},
		{"127.0.0.1:5432", 5432, false},
		{"[::1]:5432", 5432, false},
		{"[::]:443", 443, false},
		{"127.0.0.53%lo:53", 53, false},
		{"[fe80::1%en0]:7000", 7000, false},
		{":::22", 22, false},
		{"localhost", 0, true},
		{"0.0.0.0:*", 0, true},
		{"[::1]", 0, true},
		{"*:0", 0, true},
		{"*:65536", 0, true},
		{"*:65535", 65535, false},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			got, err := portFromEndpoint(tt.endpoint)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidPort)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSS(t *testing.T) {
	out := "LISTEN 0 128 127.0.0.1:5432 0.0.0.0:* users:((\"postgres\",pid=871,fd=7))\n" +
		"LISTEN 0 128 [::1]:5432 [::]:* users:((\"postgres\",pid=871,fd=8))\n"

	parsed, err := Parse(FormatSS, []byte(out))
	require.NoError(t, err)
	assert.Empty(t, parsed.Skipped)
	assert.Equal(t, []listener.Raw{
		{Port: 5432, PID: listener.SomePID(871), Command: "postgres", User: "-", Endpoint: "127.0.0.1:5432"},
		{Port: 5432, PID: listener.SomePID(871), Command: "postgres", User: "-", Endpoint: "[::1]:5432"},
	}, parsed.Listeners)

	agg := listener.Aggregate(parsed.Listeners)
	require.Len(t, agg, 1)
	assert.Equal(t, []string{"127.0.0.1:5432", "[::1]:5432"}, agg[0].Endpoints)
}

func TestParseSSVariants(t *testing.T) {
	out := "State  Recv-Q Send-Q Local Address:Port Peer Address:Port Process\n" +
		"LISTEN 0 4096 127.0.0.53%lo:53 0.0.0.0:* users:((\"systemd-resolve\",pid=728,fd=14))\n" +
		"LISTEN 0 128 *:22 *:*\n" +
		"ESTAB 0 0 10.0.0.2:22 10.0.0.9:51234 users:((\"sshd\",pid=99,fd=4))\n" +
		"LISTEN 0 511 [::]:443 [::]:* users:((\"nginx\",pid=1000,fd=7),(\"nginx\",pid=1001,fd=7))\n" +
		"LISTEN 0 128 0.0.0.0:3000 0.0.0.0:* 4242/node\n"

	parsed, err := Parse(FormatSS, []byte(out))
	require.NoError(t, err)
	assert.Empty(t, parsed.Skipped)
	require.Len(t, parsed.Listeners, 4)

	// sorted by port
	assert.Equal(t, listener.Raw{Port: 22, PID: listener.NoPID, Command: "unknown", User: "-", Endpoint: "*:22"}, parsed.Listeners[0])
	assert.Equal(t, listener.Raw{Port: 53, PID: listener.SomePID(728), Command: "systemd-resolve", User: "-", Endpoint: "127.0.0.53%lo:53"}, parsed.Listeners[1])
	assert.Equal(t, listener.Raw{Port: 443, PID: listener.SomePID(1000), Command: "nginx", User: "-", Endpoint: "[::]:443"}, parsed.Listeners[2])
	assert.Equal(t, listener.Raw{Port: 3000, PID: listener.SomePID(4242), Command: "node", User: "-", Endpoint: "0.0.0.0:3000"}, parsed.Listeners[3])
}

func TestParseSSSkipsMalformedLines(t *testing.T) {
	out := "LISTEN 0 128 127.0.0.1:5432 0.0.0.0:* users:((\"postgres\",pid=871,fd=7))\n" +
		"LISTEN 0 128 garbage 0.0.0.0:*\n" +
		"LISTEN 0\n"

	parsed, err := Parse(FormatSS, []byte(out))
	require.NoError(t, err)
	require.Len(t, parsed.Listeners, 1)
	require.Len(t, parsed.Skipped, 2)
	assert.Equal(t, 2, parsed.Skipped[0].Line)
	assert.ErrorIs(t, parsed.Skipped[0], ErrInvalidPort)
	assert.Equal(t, 3, parsed.Skipped[1].Line)
	assert.ErrorIs(t, parsed.Skipped[1], ErrTooFewFields)
}

func TestParseSSOnlyNonListenLines(t *testing.T) {
	out := "ESTAB 0 0 10.0.0.2:22 10.0.0.9:51234\nTIME-WAIT 0 0 10.0.0.2:80 10.0.0.9:4000\n"

	parsed, err := Parse(FormatSS, []byte(out))
	require.NoError(t, err)
	assert.Empty(t, parsed.Listeners)
}

func TestParseFailsWhenNothingParses(t *testing.T) {
	_, err := Parse(FormatSS, []byte("LISTEN 0 128 nope 0.0.0.0:*\nLISTEN 0 128 alsonope:x *:*\n"))
	require.Error(t, err)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, FormatSS, perr.Format)
	assert.ErrorIs(t, err, ErrNoRecords)
	assert.Len(t, perr.Lines, 2)
	assert.Contains(t, err.Error(), "line 1")
}

func TestParseEmptyOutput(t *testing.T) {
	for _, f := range []Format{FormatLsof, FormatSS} {
		_, err := Parse(f, []byte("  \n\n"))
		assert.ErrorIs(t, err, ErrEmptyOutput, f.String())
	}
}

func TestParseUnknownFormat(t *testing.T) {
	_, err := Parse(Format(99), []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "format(99)")
}

func TestParseProcessDescriptor(t *testing.T) {
	pid, cmd := parseProcessDescriptor(`users:(("postgres",pid=1178,fd=7))`)
	assert.Equal(t, listener.SomePID(1178), pid)
	assert.Equal(t, "postgres", cmd)

	pid, cmd = parseProcessDescriptor("")
	assert.Equal(t, listener.NoPID, pid)
	assert.Equal(t, "unknown", cmd)

	pid, cmd = parseProcessDescriptor("1234/sshd: /usr/sbin")
	assert.Equal(t, listener.SomePID(1234), pid)
	assert.Equal(t, "sshd: /usr/sbin", cmd)
}

func TestParseLsof(t *testing.T) {
	out := "p123\ncpostgres\nLrexfelix\nf7\nTST=LISTEN\nn127.0.0.1:5432\nf8\nn[::1]:5432\n"

	parsed, err := Parse(FormatLsof, []byte(out))
	require.NoError(t, err)
	require.Len(t, parsed.Listeners, 2)
	assert.Equal(t, listener.Raw{Port: 5432, PID: listener.SomePID(123), Command: "postgres", User: "rexfelix", Endpoint: "127.0.0.1:5432"}, parsed.Listeners[0])
	assert.Equal(t, "[::1]:5432", parsed.Listeners[1].Endpoint)
}

func TestParseLsofUserFallback(t *testing.T) {
	parsed, err := Parse(FormatLsof, []byte("p456\ncnginx\nu0\nn*:80\n"))
	require.NoError(t, err)
	require.Len(t, parsed.Listeners, 1)
	assert.Equal(t, uint16(80), parsed.Listeners[0].Port)
	assert.Equal(t, "0", parsed.Listeners[0].User)

	// L wins over u no matter the order
	parsed, err = Parse(FormatLsof, []byte("p456\ncnginx\nLwww\nu33\nn*:80\n"))
	require.NoError(t, err)
	assert.Equal(t, "www", parsed.Listeners[0].User)
}

func TestParseLsofResetsPerProcess(t *testing.T) {
	out := "p10\ncnginx\nLroot\nn*:80\n" +
		"p20\ncnode\nn127.0.0.1:3000\n" +
		"pnot-a-pid\nn*:9000\n"

	parsed, err := Parse(FormatLsof, []byte(out))
	require.NoError(t, err)
	require.Len(t, parsed.Listeners, 3)

	assert.Equal(t, listener.Raw{Port: 80, PID: listener.SomePID(10), Command: "nginx", User: "root", Endpoint: "*:80"}, parsed.Listeners[0])
	assert.Equal(t, listener.Raw{Port: 3000, PID: listener.SomePID(20), Command: "node", User: "-", Endpoint: "127.0.0.1:3000"}, parsed.Listeners[1])
	assert.Equal(t, listener.Raw{Port: 9000, PID: listener.NoPID, Command: "unknown", User: "-", Endpoint: "*:9000"}, parsed.Listeners[2])
}

func TestParseLsofSkipsBadNames(t *testing.T) {
	parsed, err := Parse(FormatLsof, []byte("p1\ncx\nnlocalhost\nn*:22\r\n"))
	require.NoError(t, err)
	require.Len(t, parsed.Listeners, 1)
	assert.Equal(t, "*:22", parsed.Listeners[0].Endpoint)
	require.Len(t, parsed.Skipped, 1)
	assert.Equal(t, "name", parsed.Skipped[0].Field)
	assert.Equal(t, 3, parsed.Skipped[0].Line)
}

func TestParseSortIsStable(t *testing.T) {
	out := "p2\ncb\nn*:90\n" +
		"p1\nca\nn[::]:80\nn0.0.0.0:80\n"

	parsed, err := Parse(FormatLsof, []byte(out))
	require.NoError(t, err)
	require.Len(t, parsed.Listeners, 3)
	assert.Equal(t, "[::]:80", parsed.Listeners[0].Endpoint)
	assert.Equal(t, "0.0.0.0:80", parsed.Listeners[1].Endpoint)
	assert.Equal(t, "*:90", parsed.Listeners[2].Endpoint)
}
