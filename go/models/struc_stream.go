package models

import (
	"encoding/binary"
	"io"

	"github.com/lunixbochs/struc"
)

// StrucStream packs to W and unpacks from R using one byte order.
// Either side may be nil if only one direction is used.
type StrucStream struct {
	R     io.Reader
	W     io.Writer
	Order binary.ByteOrder
}

func (s *StrucStream) Pack(vals ...interface{}) error {
	for _, v := range vals {
		if err := struc.PackWithOrder(s.W, v, s.Order); err != nil {
			return err
		}
	}
	return nil
}

func (s *StrucStream) Unpack(vals ...interface{}) error {
	for _, v := range vals {
		if err := struc.UnpackWithOrder(s.R, v, s.Order); err != nil {
			return err
		}
	}
	return nil
}
