package mkimage

import (
	"bytes"
	"debug/elf"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/timeros/appload/go/cmd/boot"
	"github.com/timeros/appload/go/cmd/ls"
	"github.com/timeros/appload/go/loader"
	"github.com/timeros/appload/go/loader/elftest"
)

func writeElf(t *testing.T, dir, name string, vaddr uint64) string {
	path := filepath.Join(dir, name)
	data := elftest.RV64(vaddr, elftest.Segment{
		Flags: elf.PF_R | elf.PF_X,
		Vaddr: vaddr,
		Data:  []byte(name),
	}).Bytes()
	if err := ioutil.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAppName(t *testing.T) {
	for path, want := range map[string]string{
		"user/bin/hello.elf": "hello",
		"sh":                 "sh",
		"a.b.elf":            "a.b",
	} {
		if got := AppName(path); got != want {
			t.Errorf("AppName(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestMkimageLsBoot(t *testing.T) {
	dir, err := ioutil.TempDir("", "mkimage")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	zeta := writeElf(t, dir, "zeta.elf", 0x1000)
	alpha := writeElf(t, dir, "alpha.elf", 0x10000)
	image := filepath.Join(dir, "kernel.img")

	var stdout, stderr bytes.Buffer
	if code := Run([]string{"mkimage", "-v", "-o", image, zeta, alpha}, &stdout, &stderr); code != 0 {
		t.Fatalf("mkimage exit %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "wrote "+image) {
		t.Errorf("stdout = %q", stdout.String())
	}
	img, err := loader.LoadImageFile(image)
	if err != nil {
		t.Fatal(err)
	}
	if img.Base != DefaultBase {
		t.Errorf("base = %#x", img.Base)
	}
	reg, err := loader.NewImageRegistry(img, 0)
	if err != nil {
		t.Fatal(err)
	}
	if names := strings.Join(reg.Names(), ","); names != "alpha,zeta" {
		t.Errorf("names = %s", names)
	}

	var out bytes.Buffer
	c := ls.Command("ls")
	c.Stdout, c.Stderr = &out, &stderr
	if code := c.Run([]string{"ls", image}); code != 0 {
		t.Fatalf("ls exit %d: %s", code, stderr.String())
	}
	if !strings.Contains(out.String(), "  0 alpha") || !strings.Contains(out.String(), "  1 zeta") {
		t.Errorf("ls = %q", out.String())
	}

	out.Reset()
	c = boot.Command("boot")
	c.Stdout, c.Stderr = &out, &stderr
	if code := c.Run([]string{"boot", "-color=false", image}); code != 0 {
		t.Fatalf("boot exit %d: %s", code, stderr.String())
	}
	for _, want := range []string{"task 0 (alpha): entry 0x10000", "task 1 (zeta): entry 0x1000", "r-xu"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("boot output is missing %q:\n%s", want, out.String())
		}
	}
}

func TestMkimageRejects(t *testing.T) {
	dir, err := ioutil.TempDir("", "mkimage")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	script := filepath.Join(dir, "script.sh")
	if err := ioutil.WriteFile(script, []byte("#!/bin/sh\necho hi\n"), 0755); err != nil {
		t.Fatal(err)
	}
	image := filepath.Join(dir, "kernel.img")
	var stdout, stderr bytes.Buffer
	if code := Run([]string{"mkimage", "-o", image, script}, &stdout, &stderr); code != 1 {
		t.Errorf("non-ELF input: exit %d", code)
	}
	if !strings.Contains(stderr.String(), "Could not identify file magic") {
		t.Errorf("stderr = %q", stderr.String())
	}
	if code := Run([]string{"mkimage", script}, &stdout, &stderr); code != 2 {
		t.Errorf("missing -o: exit %d", code)
	}
	if _, err := os.Stat(image); !os.IsNotExist(err) {
		t.Errorf("image written after failure: %v", err)
	}
}
