package detect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sshwatch/internal/parser"
	"sshwatch/internal/types"
)

func failed(ip, user string) *parser.AuthEvent {
	return &parser.AuthEvent{Date: "Mar  3", Time: "10:15:02", User: user, SourceIP: ip, Port: "22", Status: parser.StatusFailed}
}

func TestEngine_BruteForceDetection(t *testing.T) {
	e := NewEngine(5, time.Hour)
	ip := "192.168.1.1"

	for i := 0; i < 4; i++ {
		assert.Nil(t, e.ProcessEvent(failed(ip, "root")), "unexpected alert at attempt %d", i+1)
	}

	alert := e.ProcessEvent(failed(ip, "root"))
	require.NotNil(t, alert)
	assert.Equal(t, types.RiskMedium, alert.Risk)
	assert.Equal(t, ip, alert.IP)
	assert.Equal(t, 5, alert.FailedLogins)
	assert.Equal(t, 1, alert.DistinctUsers)
	assert.Contains(t, alert.Explanation, "failed 5 SSH logins using 1 distinct username since")
}

func TestEngine_AlertsAtMultiples(t *testing.T) {
	e := NewEngine(3, time.Hour)

	var alerts []int
	for i := 1; i <= 9; i++ {
		if a := e.ProcessEvent(failed("10.0.0.1", "root")); a != nil {
			alerts = append(alerts, a.FailedLogins)
		}
	}
	assert.Equal(t, []int{3, 6, 9}, alerts)
}

func TestEngine_HighRiskWithManyUsers(t *testing.T) {
	e := NewEngine(2, time.Hour)

	e.ProcessEvent(failed("10.0.0.1", "root"))
	alert := e.ProcessEvent(failed("10.0.0.1", "admin"))
	require.NotNil(t, alert)
	assert.Equal(t, types.RiskHigh, alert.Risk)
	assert.Contains(t, alert.Explanation, "using 2 distinct usernames")
}

func TestEngine_IgnoresOtherStatuses(t *testing.T) {
	e := NewEngine(1, time.Hour)

	for _, st := range []parser.Status{parser.StatusClosed, parser.StatusDisconnected, parser.StatusNone} {
		evt := failed("10.0.0.1", "root")
		evt.Status = st
		assert.Nil(t, e.ProcessEvent(evt))
	}
	assert.Nil(t, e.ProcessEvent(nil))
}

func TestEngine_Configure(t *testing.T) {
	e := NewEngine(5, time.Hour)
	e.ProcessEvent(failed("10.0.0.1", "root"))

	e.Configure(2, time.Hour)
	assert.Equal(t, 2, e.Threshold())
	require.NotNil(t, e.ProcessEvent(failed("10.0.0.1", "root")))

	e.Configure(0, time.Hour)
	assert.Nil(t, e.ProcessEvent(failed("10.0.0.1", "root")))
}
