package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewDefaultsToInfoOnUnknownLevel(t *testing.T) {
	log := New("not-a-real-level")
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}

func TestNewHonorsValidLevel(t *testing.T) {
	log := New("debug")
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
}

func TestForWorkerTagsWorkerID(t *testing.T) {
	log := New("info")
	entry := ForWorker(log, 3)
	assert.Equal(t, 3, entry.Data["worker_id"])
}

func TestWithConnTagsFdAndRemoteAddr(t *testing.T) {
	log := New("info")
	entry := WithConn(ForWorker(log, 0), 7, "127.0.0.1:9000")
	assert.EqualValues(t, 7, entry.Data["fd"])
	assert.Equal(t, "127.0.0.1:9000", entry.Data["remote_addr"])
}
