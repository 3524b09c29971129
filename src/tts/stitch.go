package tts

import (
	"bytes"
	"io/ioutil"
	"time"

	"github.com/admiralbulldogtv/yapperqueue/src/textparser/parts"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/orcaman/writerseeker"
)

const (
	ShortPause  = 50 * time.Millisecond
	MediumPause = 120 * time.Millisecond
	LongPause   = 200 * time.Millisecond
	// Padding is the silence at the start and end of every clip.
	Padding = time.Second
)

func silence(f wavFormat, d time.Duration) *audio.IntBuffer {
	frames := int(int64(f.SampleRate) * int64(d) / int64(time.Second))
	return &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: f.NumChannels, SampleRate: f.SampleRate},
		Data:           make([]int, frames*f.NumChannels),
		SourceBitDepth: f.BitDepth,
	}
}

func pause(space parts.SpaceType) time.Duration {
	switch space {
	case parts.SpaceTypeLongPause:
		return LongPause
	case parts.SpaceTypeMediumPause:
		return MediumPause
	default:
		return ShortPause
	}
}

// stitch joins the generated segments in order with the pause each one asks for.
func stitch(segments parts.SegmentList, wavs map[string]*audio.IntBuffer, f wavFormat) ([]byte, error) {
	buf := &writerseeker.WriterSeeker{}
	encoder := wav.NewEncoder(buf, f.SampleRate, f.BitDepth, f.NumChannels, f.AudioFormat)

	if err := encoder.Write(silence(f, Padding)); err != nil {
		return nil, err
	}

	for _, s := range segments {
		w, ok := wavs[s.Value]
		if !ok {
			return nil, ErrNoAudio
		}
		if err := encoder.Write(w); err != nil {
			return nil, err
		}
		if err := encoder.Write(silence(f, pause(s.Space))); err != nil {
			return nil, err
		}
	}

	if err := encoder.Write(silence(f, Padding)); err != nil {
		return nil, err
	}

	if err := encoder.Close(); err != nil {
		return nil, err
	}

	if err := buf.Close(); err != nil {
		return nil, err
	}

	return ioutil.ReadAll(buf.Reader())
}

// Duration is how long a wav clip plays for.
func Duration(data []byte) (time.Duration, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		return 0, ErrNoAudio
	}
	aBuf, err := decoder.FullPCMBuffer()
	if err != nil {
		return 0, err
	}
	if aBuf.Format.NumChannels == 0 || aBuf.Format.SampleRate == 0 {
		return 0, ErrNoAudio
	}

	frames := int64(len(aBuf.Data) / aBuf.Format.NumChannels)
	return time.Duration(frames * int64(time.Second) / int64(aBuf.Format.SampleRate)), nil
}
