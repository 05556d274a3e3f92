//go:build linux

package inventory

import (
	"testing"

	"github.com/jaypipes/ghw/pkg/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisksFromBlockSkipsVirtualDevices(t *testing.T) {
	t.Parallel()

	info := &block.Info{Disks: []*block.Disk{
		{Name: "loop0", SizeBytes: 10},
		{Name: "sda", Model: "ST1000", SizeBytes: 1000, Partitions: []*block.Partition{{Name: "sda1"}, {Name: "sda2"}}},
		nil,
		{Name: "zram0"},
		{Name: "nvme0n1", Model: "Samsung SSD 980", SizeBytes: 500},
	}}

	raws, byName := disksFromBlock(info)
	require.Len(t, raws, 2)
	assert.Len(t, byName, 2)

	assert.Equal(t, "sda", raws[0].ID)
	assert.Equal(t, uint32(0), *raws[0].Index)
	assert.Equal(t, "/dev/sda", raws[0].DevicePath)
	assert.Equal(t, uint32(2), raws[0].Partitions)

	assert.Equal(t, "nvme0n1", raws[1].ID)
	assert.Equal(t, uint32(1), *raws[1].Index)

	rec, err := newDiskRecord(raws[1])
	require.NoError(t, err)
	assert.Equal(t, DiskSSD, ClassifyDisk(0, false, raws[1].MediaType, rec.Model, raws[1].InterfaceType))
}
