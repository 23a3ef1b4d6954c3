package main

import (
	"fmt"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sofs-go/gosofs/pkg/elog"
	"github.com/sofs-go/gosofs/pkg/sofs"
)

var log elog.View

var (
	flagName   string
	flagInodes uint32
	flagZero   bool
	flagQuiet  bool
)

var rootCmd = &cobra.Command{
	Use:   "mkfs DEVICE",
	Short: "Format a regular file as a SOFS volume",
	Long:  "mkfs lays out a fresh SOFS superblock, inode table, root directory and free-cluster chain over DEVICE, a regular file whose size is a multiple of the block size.",
	Args:  cobra.ExactArgs(1),
	RunE:  runFormat,
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&flagName, "name", "n", sofs.DefaultVolumeName, "volume name")
	f.Uint32VarP(&flagInodes, "inodes", "i", 0, "inode count (default nTotal/8)")
	f.BoolVarP(&flagZero, "zero", "z", false, "zero the payload of every free cluster")
	f.BoolVarP(&flagQuiet, "quiet", "q", false, "suppress progress messages")
}

func runFormat(cmd *cobra.Command, args []string) error {
	logger := &elog.CLI{}
	if flagQuiet {
		logger.DisableTTY = true
	}
	logrus.SetFormatter(logger)
	logrus.SetLevel(logrus.TraceLevel)
	log = logger

	device, err := homedir.Expand(args[0])
	if err != nil {
		return err
	}

	fi, err := os.Stat(device)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		return err
	}

	caller := sofs.Caller{
		UID:    uint16(os.Getuid()),
		GID:    uint16(os.Getgid()),
		IsRoot: os.Getuid() == 0,
	}

	fsys, err := sofs.Format(f, fi.Size(), sofs.FormatOptions{
		Name:      flagName,
		NumInodes: flagInodes,
		Zero:      flagZero,
	}, caller, log)
	if err != nil {
		f.Close()
		return err
	}

	if err := fsys.Check(); err != nil {
		fsys.Close()
		return err
	}

	if err := fsys.Close(); err != nil {
		return err
	}

	if !flagQuiet {
		log.Infof("mkfs: %s formatted successfully", device)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if se, ok := err.(*sofs.Error); ok {
			fmt.Fprintf(os.Stderr, "mkfs: %s: %s\n", se.Code, se.Error())
		} else {
			fmt.Fprintf(os.Stderr, "mkfs: %v\n", err)
		}
		os.Exit(1)
	}
}
