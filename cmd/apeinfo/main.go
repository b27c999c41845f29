// apeinfo lists the stream information of APE (Monkey's Audio) files.
//
// Usage:
//
//	apeinfo FILE.ape...
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/mewkiz/ape"
	"github.com/mewkiz/ape/meta"
)

func main() {
	flag.Parse()
	for _, path := range flag.Args() {
		if err := list(path); err != nil {
			log.Fatalf("%+v", err)
		}
	}
}

// compressionNames maps compression levels to their conventional names.
var compressionNames = map[uint16]string{
	meta.CompressionFast:      "fast",
	meta.CompressionNormal:    "normal",
	meta.CompressionHigh:      "high",
	meta.CompressionExtraHigh: "extra high",
	meta.CompressionInsane:    "insane",
}

// list prints the stream information of the provided APE file.
func list(path string) error {
	stream, err := ape.Open(path)
	if err != nil {
		return err
	}
	defer stream.Close()

	info := stream.Info
	fmt.Println(path)
	fmt.Printf("  format version:    %d.%02d\n", info.FormatVersion/1000, info.FormatVersion%1000/10)
	fmt.Printf("  compression:       %d (%s)\n", info.CompressionLevel, compressionNames[info.CompressionLevel])
	fmt.Printf("  sample rate:       %d Hz\n", info.SampleRate)
	fmt.Printf("  channels:          %d\n", info.NChannels)
	fmt.Printf("  bits per sample:   %d\n", info.BitsPerSample)
	fmt.Printf("  blocks per frame:  %d\n", info.BlocksPerFrame)
	fmt.Printf("  final frame:       %d blocks\n", info.FinalFrameBlocks)
	fmt.Printf("  frames:            %d\n", info.TotalFrames)
	fmt.Printf("  total blocks:      %d\n", info.NBlocks)
	fmt.Printf("  MD5:               %x\n", info.MD5sum)
	return nil
}
