package main

import (
	"bytes"
	"encoding/binary"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sisatech/tspc/pkg/elog"
)

var initCommandsOnce sync.Once

func writeTestInput(t *testing.T, dir string) string {
	t.Helper()

	buf := new(bytes.Buffer)
	prefix := [5]uint32{1, 1, 2, 2, 2}
	if err := binary.Write(buf, binary.LittleEndian, prefix); err != nil {
		t.Fatal(err)
	}
	voxels := []float32{0, 1, 2, 3, 4, 5, 6, 7}
	if err := binary.Write(buf, binary.LittleEndian, voxels); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "input.raw")
	if err := ioutil.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBuildDescribeVerifyRoundTrip(t *testing.T) {

	initCommandsOnce.Do(commandInit)
	log = &elog.CLI{DisableTTY: true}

	dir, err := ioutil.TempDir("", "tspbuild-cli-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	inPath := writeTestInput(t, dir)
	outPath := filepath.Join(dir, "output.tsp")

	buildCmd.Flags().Set("brick-dim", "1")
	buildCmd.Run(buildCmd, []string{inPath, outPath})
	if errorStatusMessage != nil {
		t.Fatalf("build: %v", errorStatusMessage)
	}

	if _, err := os.Stat(outPath); err != nil {
		t.Fatalf("expected output file: %v", err)
	}

	errorStatusMessage = nil
	verifyCmd.Run(verifyCmd, []string{outPath})
	if errorStatusMessage != nil {
		t.Fatalf("verify: %v", errorStatusMessage)
	}

	errorStatusMessage = nil
	describeCmd.Run(describeCmd, []string{outPath})
	if errorStatusMessage != nil {
		t.Fatalf("describe: %v", errorStatusMessage)
	}

}
