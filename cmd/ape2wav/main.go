// ape2wav is a tool which converts APE (Monkey's Audio) files to WAV format.
//
// Usage:
//
//	ape2wav [OPTION]... FILE.ape...
//
// Flags:
//
//	-f    Force overwrite of output files.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mewkiz/ape"
	"github.com/mewkiz/pkg/osutil"
	"github.com/mewkiz/pkg/pathutil"
)

// flagForce specifies if file overwriting should be forced, when a WAV file
// of the same name already exists.
var flagForce bool

func init() {
	flag.BoolVar(&flagForce, "f", false, "Force overwrite.")
}

func main() {
	flag.Parse()
	for _, path := range flag.Args() {
		if err := ape2wav(path); err != nil {
			log.Fatalf("%+v", err)
		}
	}
}

// ape2wav converts the provided APE file to a WAV file.
func ape2wav(path string) error {
	stream, err := ape.Open(path)
	if err != nil {
		return err
	}
	defer stream.Close()

	wavPath := pathutil.TrimExt(path) + ".wav"
	if !flagForce {
		if osutil.Exists(wavPath) {
			return fmt.Errorf("the file %q exists already", wavPath)
		}
	}
	out, err := os.Create(wavPath)
	if err != nil {
		return err
	}
	defer out.Close()

	info := stream.Info
	enc := wav.NewEncoder(out, int(info.SampleRate), int(info.BitsPerSample), int(info.NChannels), 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: int(info.NChannels),
			SampleRate:  int(info.SampleRate),
		},
		SourceBitDepth: int(info.BitsPerSample),
	}
	for {
		f, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if f.BadCRC {
			log.Printf("%s: frame %d: CRC mismatch", path, f.Num)
		}
		buf.Data = buf.Data[:0]
		for _, sample := range f.Samples {
			// WAV stores 8-bit samples unsigned.
			if info.BitsPerSample == 8 {
				sample += 0x80
			}
			buf.Data = append(buf.Data, int(sample))
		}
		if err := enc.Write(buf); err != nil {
			return err
		}
	}
	return enc.Close()
}
