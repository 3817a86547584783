package loader

import (
	"bytes"
	"encoding/binary"
	"io"
	"io/ioutil"
	"os"

	"github.com/golang/snappy"
	"github.com/pkg/errors"

	"github.com/timeros/appload/go/models"
)

const imageVersion = 1

var imageMagic = [4]byte{'K', 'I', 'M', 'G'}

type imageHeader struct {
	Magic     [4]byte
	Version   uint32
	Base      uint64
	TableAddr uint64
	Size      uint64
}

// KernelImage is the kernel's data section as loaded at Base.
type KernelImage struct {
	Base      uint64
	TableAddr uint64
	Data      []byte
}

func (k *KernelImage) End() uint64 { return k.Base + uint64(len(k.Data)) }

// Slice returns the bytes at [addr, addr+size) without copying.
func (k *KernelImage) Slice(addr, size uint64) ([]byte, error) {
	if addr < k.Base || addr > k.End() || size > k.End()-addr {
		return nil, errors.Errorf("range 0x%x+0x%x outside image 0x%x-0x%x", addr, size, k.Base, k.End())
	}
	off := addr - k.Base
	return k.Data[off : off+size : off+size], nil
}

// WriteImage writes a header followed by the snappy-framed image bytes.
func WriteImage(w io.Writer, img *KernelImage) error {
	s := models.StrucStream{W: w, Order: binary.LittleEndian}
	hdr := &imageHeader{
		Magic:     imageMagic,
		Version:   imageVersion,
		Base:      img.Base,
		TableAddr: img.TableAddr,
		Size:      uint64(len(img.Data)),
	}
	if err := s.Pack(hdr); err != nil {
		return errors.Wrap(err, "write image header")
	}
	sw := snappy.NewBufferedWriter(w)
	if _, err := sw.Write(img.Data); err != nil {
		return errors.Wrap(err, "write image body")
	}
	return errors.Wrap(sw.Close(), "flush image body")
}

func ReadImage(r io.Reader) (*KernelImage, error) {
	var hdr imageHeader
	s := models.StrucStream{R: r, Order: binary.LittleEndian}
	if err := s.Unpack(&hdr); err != nil {
		return nil, &kindError{ErrBadImage, err}
	}
	if hdr.Magic != imageMagic {
		return nil, errors.Wrapf(ErrBadImage, "magic %q", hdr.Magic[:])
	}
	if hdr.Version != imageVersion {
		return nil, errors.Wrapf(ErrBadImage, "unsupported version %d", hdr.Version)
	}
	if hdr.TableAddr < hdr.Base || hdr.TableAddr-hdr.Base >= hdr.Size {
		return nil, errors.Wrapf(ErrBadImage, "table 0x%x outside image", hdr.TableAddr)
	}
	var body bytes.Buffer
	n, err := io.Copy(&body, io.LimitReader(snappy.NewReader(r), int64(hdr.Size)+1))
	if err != nil {
		return nil, &kindError{ErrBadImage, err}
	}
	if uint64(n) != hdr.Size {
		return nil, errors.Wrapf(ErrBadImage, "body is %d bytes, header says %d", n, hdr.Size)
	}
	return &KernelImage{Base: hdr.Base, TableAddr: hdr.TableAddr, Data: body.Bytes()}, nil
}

func LoadImageFile(path string) (*KernelImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()
	return ReadImage(f)
}

// SaveImageFile writes img to path, replacing any existing file.
func SaveImageFile(path string, img *KernelImage) error {
	var buf bytes.Buffer
	if err := WriteImage(&buf, img); err != nil {
		return err
	}
	return errors.WithStack(ioutil.WriteFile(path, buf.Bytes(), 0644))
}
