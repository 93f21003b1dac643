package ffmpeg

import "testing"

const sampleEncoderOutput = `Encoders:
 V..... = Video
 A..... = Audio
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC (codec h264)
 V....D libvpx-vp9           libvpx VP9 (codec vp9)
 V....D h264_videotoolbox    VideoToolbox H.264 Encoder (codec h264)
 A....D aac                  AAC (Advanced Audio Coding)
`

func TestParseEncoderList_Hardware(t *testing.T) {
	caps := ParseEncoderList([]byte(sampleEncoderOutput))

	if caps.HardwareH264 != "h264_videotoolbox" {
		t.Fatalf("HardwareH264 = %q, want h264_videotoolbox", caps.HardwareH264)
	}
	if !caps.HasLibx264 {
		t.Error("expected libx264 to be detected")
	}
	if !caps.HasLibvpx {
		t.Error("expected libvpx-vp9 to be detected")
	}
	if !caps.HasHardware() {
		t.Error("HasHardware() = false, want true")
	}
}

func TestParseEncoderList_SoftwareOnly(t *testing.T) {
	out := `Encoders:
 V....D libx264              libx264 H.264 / AVC
 A....D aac                  AAC
`
	caps := ParseEncoderList([]byte(out))

	if caps.HasHardware() {
		t.Fatalf("HasHardware() = true with no hardware encoder, caps=%+v", caps)
	}
	if !caps.HasLibx264 {
		t.Error("expected libx264 to be detected")
	}
}

func TestParseEncoderList_PreferenceOrder(t *testing.T) {
	out := ` V....D h264_nvenc    NVENC
 V....D h264_vaapi    VAAPI
`
	caps := ParseEncoderList([]byte(out))
	if caps.HardwareH264 != "h264_nvenc" {
		t.Fatalf("HardwareH264 = %q, want h264_nvenc (preference order)", caps.HardwareH264)
	}
}
