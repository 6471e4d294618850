package audio

import (
	"encoding/binary"
	"errors"
	"io"
)

// mp3DecoderDelay is the fixed synthesis delay of a layer III decoder, in
// sample frames.
const mp3DecoderDelay = 529

// mp3Trim is the number of sample frames to drop from each end of a decoded
// MP3 so its PCM matches the encoder input.
type mp3Trim struct {
	lead int64
	tail int64
}

// readMP3Trim reads the LAME encoder delay and padding from the Xing/Info
// frame. A file without that frame yields a zero trim. The reader position
// is restored before returning.
func readMP3Trim(rs io.ReadSeeker) (mp3Trim, error) {
	saved, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return mp3Trim{}, err
	}
	defer rs.Seek(saved, io.SeekStart)

	frame, err := firstFrameOffset(rs)
	if err != nil {
		return mp3Trim{}, nil
	}
	if _, err := rs.Seek(frame, io.SeekStart); err != nil {
		return mp3Trim{}, err
	}

	var hdr [4]byte
	if _, err := io.ReadFull(rs, hdr[:]); err != nil {
		return mp3Trim{}, nil
	}
	skip, ok := xingOffset(binary.BigEndian.Uint32(hdr[:]))
	if !ok {
		return mp3Trim{}, nil
	}
	if _, err := rs.Seek(frame+int64(skip), io.SeekStart); err != nil {
		return mp3Trim{}, err
	}

	buf := make([]byte, 256)
	n, err := io.ReadFull(rs, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return mp3Trim{}, nil
	}
	trim, _ := parseLAMETrim(buf[:n])
	return trim, nil
}

// firstFrameOffset skips a leading ID3v2 tag.
func firstFrameOffset(rs io.ReadSeeker) (int64, error) {
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	var h [10]byte
	if _, err := io.ReadFull(rs, h[:]); err != nil {
		return 0, err
	}
	if string(h[:3]) != "ID3" {
		return 0, nil
	}
	size := int64(h[6]&0x7f)<<21 | int64(h[7]&0x7f)<<14 | int64(h[8]&0x7f)<<7 | int64(h[9]&0x7f)
	if h[5]&0x10 != 0 {
		size += 10 // footer
	}
	return 10 + size, nil
}

// xingOffset returns where the Xing/Info tag starts relative to a layer III
// frame header: past the header, optional CRC and side information.
func xingOffset(h uint32) (int, bool) {
	if h>>21 != 0x7ff {
		return 0, false
	}
	version := (h >> 19) & 0x3
	layer := (h >> 17) & 0x3
	if layer != 0x1 || version == 0x1 {
		return 0, false
	}

	mpeg1 := version == 0x3
	mono := (h>>6)&0x3 == 0x3
	side := 17
	switch {
	case mpeg1 && !mono:
		side = 32
	case !mpeg1 && mono:
		side = 9
	}

	off := 4 + side
	if (h>>16)&0x1 == 0 {
		off += 2 // CRC
	}
	return off, true
}

func parseLAMETrim(b []byte) (mp3Trim, bool) {
	if len(b) < 8 {
		return mp3Trim{}, false
	}
	if tag := string(b[:4]); tag != "Xing" && tag != "Info" {
		return mp3Trim{}, false
	}

	flags := binary.BigEndian.Uint32(b[4:8])
	off := 8
	for _, f := range []struct {
		bit  uint32
		size int
	}{
		{0x1, 4},   // frame count
		{0x2, 4},   // byte count
		{0x4, 100}, // seek table
		{0x8, 4},   // quality
	} {
		if flags&f.bit != 0 {
			off += f.size
		}
	}
	if len(b) < off+24 {
		return mp3Trim{}, false
	}

	dp := b[off+21 : off+24]
	delay := int64(dp[0])<<4 | int64(dp[1]>>4)
	padding := int64(dp[1]&0x0f)<<8 | int64(dp[2])
	if delay == 0 && padding == 0 {
		return mp3Trim{}, false
	}
	return mp3Trim{
		lead: delay + mp3DecoderDelay,
		tail: max(padding-mp3DecoderDelay, 0),
	}, true
}
