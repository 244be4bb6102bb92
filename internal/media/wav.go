package media

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrBadMedia marks an audio file that is not (yet) a valid WAV container,
// typically because the recorder has not flushed it. Callers treat this as
// transient and retry.
var ErrBadMedia = errors.New("bad or incomplete media file")

// ProbeWAV validates the RIFF/WAVE header of the file at path and returns
// the audio duration in seconds. A short, truncated, or non-WAV file is
// reported as ErrBadMedia.
func ProbeWAV(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	header := make([]byte, 44)
	if _, err := io.ReadFull(f, header); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrBadMedia, path)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return 0, fmt.Errorf("%w: %s", ErrBadMedia, path)
	}

	numChannels := binary.LittleEndian.Uint16(header[22:24])
	sampleRate := binary.LittleEndian.Uint32(header[24:28])
	bitsPerSample := binary.LittleEndian.Uint16(header[34:36])
	dataSize := binary.LittleEndian.Uint32(header[40:44])
	if numChannels == 0 || sampleRate == 0 || bitsPerSample == 0 {
		return 0, fmt.Errorf("%w: %s", ErrBadMedia, path)
	}

	bytesPerSecond := float64(sampleRate) * float64(numChannels) * float64(bitsPerSample) / 8
	return float64(dataSize) / bytesPerSecond, nil
}

// EncodeWAVPCM16LE wraps raw PCM16LE mono audio bytes in a WAV container.
func EncodeWAVPCM16LE(pcm []byte, sampleRate int) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteWAVPCM16LETo(&buf, pcm, sampleRate); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteWAVPCM16LEFile writes raw PCM16LE mono audio bytes as a WAV file.
func WriteWAVPCM16LEFile(path string, pcm []byte, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteWAVPCM16LETo(f, pcm, sampleRate)
}

// WriteWAVPCM16LETo writes raw PCM16LE mono audio bytes to out as a WAV stream.
func WriteWAVPCM16LETo(out io.Writer, pcm []byte, sampleRate int) error {
	const (
		numChannels   = 1
		bitsPerSample = 16
		audioFormat   = 1 // PCM
	)
	if sampleRate <= 0 {
		sampleRate = 8000
	}

	dataSize := uint32(len(pcm))
	byteRate := uint32(sampleRate * numChannels * bitsPerSample / 8)
	blockAlign := uint16(numChannels * bitsPerSample / 8)

	w := bufio.NewWriter(out)

	if _, err := w.WriteString("RIFF"); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(36)+dataSize); err != nil {
		return err
	}
	if _, err := w.WriteString("WAVE"); err != nil {
		return err
	}

	if _, err := w.WriteString("fmt "); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(16)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(audioFormat)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(numChannels)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(sampleRate)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, byteRate); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, blockAlign); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(bitsPerSample)); err != nil {
		return err
	}

	if _, err := w.WriteString("data"); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, dataSize); err != nil {
		return err
	}
	if _, err := w.Write(pcm); err != nil {
		return err
	}
	return w.Flush()
}
