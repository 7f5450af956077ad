/*
Copyright (c) 2025 Weya

Licensed under the AGPLv3 License.
This file is part of the weya-hub.
*/

package services

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeWAVFloat32 converts float32 audio samples to WAV format bytes
// (mono, 32-bit IEEE float PCM)
func EncodeWAVFloat32(samples []float32, sampleRate int) []byte {
	numSamples := len(samples)
	dataSize := numSamples * 4 // 4 bytes per float32 sample
	fileSize := 36 + dataSize

	var buf bytes.Buffer

	// WAV header
	buf.WriteString("RIFF")
	writeUint32(&buf, uint32(fileSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	writeUint32(&buf, 16)      // Subchunk1Size (16 for PCM)
	writeUint16(&buf, 3)       // AudioFormat (3 = IEEE float)
	writeUint16(&buf, 1)       // NumChannels (1 = mono)
	writeUint32(&buf, uint32(sampleRate))
	writeUint32(&buf, uint32(sampleRate*4)) // ByteRate
	writeUint16(&buf, 4)                    // BlockAlign
	writeUint16(&buf, 32)                   // BitsPerSample
	buf.WriteString("data")
	writeUint32(&buf, uint32(dataSize))

	for _, sample := range samples {
		writeUint32(&buf, math.Float32bits(sample))
	}

	return buf.Bytes()
}

// DecodeWAVFloat32 parses mono 32-bit float PCM WAV bytes back into
// samples and the sample rate
func DecodeWAVFloat32(data []byte) ([]float32, int, error) {
	if len(data) < 44 {
		return nil, 0, fmt.Errorf("WAV data too short: %d bytes", len(data))
	}

	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("not a WAV file")
	}

	audioFormat := binary.LittleEndian.Uint16(data[20:22])
	if audioFormat != 3 {
		return nil, 0, fmt.Errorf("unsupported audio format %d, want IEEE float", audioFormat)
	}

	numChannels := binary.LittleEndian.Uint16(data[22:24])
	if numChannels != 1 {
		return nil, 0, fmt.Errorf("unsupported channel count %d, want mono", numChannels)
	}

	sampleRate := int(binary.LittleEndian.Uint32(data[24:28]))
	dataSize := int(binary.LittleEndian.Uint32(data[40:44]))

	payload := data[44:]
	if dataSize > len(payload) {
		dataSize = len(payload)
	}

	samples := make([]float32, 0, dataSize/4)
	for i := 0; i+4 <= dataSize; i += 4 {
		bits := binary.LittleEndian.Uint32(payload[i : i+4])
		samples = append(samples, math.Float32frombits(bits))
	}

	return samples, sampleRate, nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	buf.Write(b)
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	buf.Write(b)
}
