package main

import (
	"io/ioutil"
	"os"
	"testing"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sofs-go/gosofs/pkg/sofs"
)

func TestRunFormatProducesCheckableImage(t *testing.T) {
	f, err := ioutil.TempFile(os.TempDir(), "mkfs-test-")
	require.NoError(t, err)
	defer os.Remove(f.Name())
	require.NoError(t, f.Truncate(1000*sofs.BlockSize))
	require.NoError(t, f.Close())

	flagName = "testvol"
	flagInodes = 128
	flagZero = false
	flagQuiet = true

	err = runFormat(rootCmd, []string{f.Name()})
	require.NoError(t, err)

	dev, err := os.OpenFile(f.Name(), os.O_RDWR, 0)
	require.NoError(t, err)
	defer dev.Close()

	fsys, err := sofs.Open(dev, sofs.Caller{IsRoot: true}, nil)
	require.NoError(t, err)
	defer fsys.Close()

	sb := fsys.Superblock()
	assert.Equal(t, uint32(128), sb.ITotal)
	assert.NoError(t, fsys.Check())
}

func TestDeviceArgExpandsHomeDir(t *testing.T) {
	expanded, err := homedir.Expand("~/does-not-exist-sofs-test")
	assert.NoError(t, err)
	assert.NotEqual(t, "~/does-not-exist-sofs-test", expanded)
}
