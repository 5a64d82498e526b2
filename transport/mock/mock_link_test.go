package mock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMockLinkWriteRecordsTxLog(t *testing.T) {
	link := New("/dev/fake0")
	require.NoError(t, link.Write([]byte{1, 2, 3}))
	require.NoError(t, link.Write([]byte{4, 5}))

	log := link.TxLog()
	require.Len(t, log, 2)
	require.Equal(t, []byte{1, 2, 3}, log[0])
	require.Equal(t, []byte{4, 5}, log[1])
}

func TestMockLinkReadServesInjectedData(t *testing.T) {
	link := New("/dev/fake0")
	link.InjectRx([]byte{9, 9, 9})

	data, err := link.Read(10 * time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, []byte{9, 9, 9}, data)
}

func TestMockLinkReadTimesOutWhenEmpty(t *testing.T) {
	link := New("/dev/fake0")
	_, err := link.Read(5 * time.Millisecond)
	require.Error(t, err)
}

func TestMockLinkClosedRejectsOps(t *testing.T) {
	link := New("/dev/fake0")
	require.NoError(t, link.Close())
	require.Error(t, link.Write([]byte{1}))
	_, err := link.Read(time.Millisecond)
	require.Error(t, err)
}

func TestMockLinkPath(t *testing.T) {
	link := New("/dev/ttyACM3")
	require.Equal(t, "/dev/ttyACM3", link.Path())
}
