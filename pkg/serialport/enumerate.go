package serialport

import (
	"path/filepath"
	"strings"

	"go.bug.st/serial/enumerator"
)

// listPorts is a seam over the OS enumerator so tests can inject
// candidate lists.
var listPorts = enumerator.GetDetailedPortsList

// Well-known USB-serial bridge vendors, by USB VID. Used to give
// candidates a manufacturer string the keyword matcher can see; the
// Go enumerator only reports numeric IDs.
var vendorNames = map[string]string{
	"1a86": "QinHeng",
	"10c4": "Silicon Labs",
	"0403": "FTDI",
}

// enumerate returns the current candidate list. When the enumerator
// yields nothing (common on minimal images without udev metadata), it
// falls back to globbing the USB serial class device nodes.
func enumerate() ([]Candidate, error) {
	ports, err := listPorts()
	if err != nil || len(ports) == 0 {
		cands := globCandidates()
		if len(cands) > 0 {
			return cands, nil
		}
		return nil, err
	}

	cands := make([]Candidate, 0, len(ports))
	for _, p := range ports {
		cands = append(cands, Candidate{
			Path:         p.Name,
			IsUSB:        p.IsUSB,
			Description:  p.Product,
			Manufacturer: manufacturerText(p.VID),
		})
	}
	return cands, nil
}

// manufacturerText builds a matchable vendor string from a USB VID.
func manufacturerText(vid string) string {
	if vid == "" {
		return ""
	}
	if name, ok := vendorNames[strings.ToLower(vid)]; ok {
		return name + " " + vid
	}
	return vid
}

// globCandidates lists USB serial device nodes directly from /dev.
func globCandidates() []Candidate {
	var cands []Candidate
	for _, pattern := range []string{"/dev/ttyUSB*", "/dev/ttyACM*"} {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		for _, m := range matches {
			cands = append(cands, Candidate{Path: m, IsUSB: true})
		}
	}
	return cands
}
