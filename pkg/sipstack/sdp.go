package sipstack

import (
	"fmt"
	"strconv"

	"github.com/pion/sdp/v3"
)

// buildLocalSDP renders the single PCMU media-line SDP body the intercom
// always advertises, per spec §6: origin "-", connection address the local
// IP, one `audio <port> RTP/AVP 0` line.
func buildLocalSDP(localIP string, localRTPPort uint16) ([]byte, error) {
	desc := &sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      1,
			SessionVersion: 1,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: localIP,
		},
		SessionName: sdp.SessionName("-"),
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address:     &sdp.Address{Address: localIP},
		},
		TimeDescriptions: []sdp.TimeDescription{{}},
		MediaDescriptions: []*sdp.MediaDescription{
			{
				MediaName: sdp.MediaName{
					Media:   "audio",
					Port:    sdp.RangedPort{Value: int(localRTPPort)},
					Protos:  []string{"RTP", "AVP"},
					Formats: []string{"0"},
				},
				Attributes: []sdp.Attribute{
					{Key: "rtpmap", Value: "0 PCMU/8000"},
					{Key: "sendrecv"},
				},
			},
		},
	}
	return desc.Marshal()
}

// remoteMedia describes what remoteSDP offered, per spec §4.3/§6.
type remoteMedia struct {
	IP          string
	Port        uint16
	PayloadType uint8
}

// parseRemoteSDP extracts the remote IP, RTP port, and first offered
// payload type from an SDP body. A body that does not parse, or that
// carries no media description, is the "bad SDP" case that callers must
// turn into a 488.
func parseRemoteSDP(body []byte) (*remoteMedia, error) {
	var desc sdp.SessionDescription
	if err := desc.Unmarshal(body); err != nil {
		return nil, fmt.Errorf("sipstack: parse remote SDP: %w", err)
	}
	if len(desc.MediaDescriptions) == 0 {
		return nil, fmt.Errorf("sipstack: remote SDP has no media description")
	}
	media := desc.MediaDescriptions[0]

	ip := ""
	if media.ConnectionInformation != nil && media.ConnectionInformation.Address != nil {
		ip = media.ConnectionInformation.Address.Address
	} else if desc.ConnectionInformation != nil && desc.ConnectionInformation.Address != nil {
		ip = desc.ConnectionInformation.Address.Address
	} else {
		ip = desc.Origin.UnicastAddress
	}
	if ip == "" {
		return nil, fmt.Errorf("sipstack: remote SDP has no connection address")
	}

	if len(media.MediaName.Formats) == 0 {
		return nil, fmt.Errorf("sipstack: remote SDP media has no formats")
	}
	pt, err := strconv.Atoi(media.MediaName.Formats[0])
	if err != nil {
		return nil, fmt.Errorf("sipstack: invalid payload type %q: %w", media.MediaName.Formats[0], err)
	}

	return &remoteMedia{
		IP:          ip,
		Port:        uint16(media.MediaName.Port.Value),
		PayloadType: uint8(pt),
	}, nil
}
