// Package broker implements the framed-XML message broker core: the
// dispatcher (accept loop and per-connection readers), the consumer registry,
// and the fan-out sender.
/*
 * Copyright (c) 2024-2025, NVIDIA CORPORATION. All rights reserved.
 */
package broker

import (
	"bytes"
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"io"
)

// wire format: 4-byte big-endian length followed by that many bytes of UTF-8 XML,
// one top-level element per frame
const (
	lenPrefixSize = 4
	maxFrameSize  = 16 << 20 // announced lengths beyond this close the connection
)

// frame element names
const (
	tagSubscribe = "subscribe"
	tagSend      = "send"
	tagAck       = "ack"
	tagPong      = "pong"
)

// frame attribute names
const (
	attrPrefetch = "prefetch"
	attrRefer    = "refer"
)

func errTooBig(l uint32) error {
	return fmt.Errorf("announced frame length %d exceeds the %d maximum", l, maxFrameSize)
}

// readFrame reads exactly one frame; the payload is freshly allocated
// (message bodies alias it for their lifetime)
func readFrame(r io.Reader, lenBuf []byte) ([]byte, error) {
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return nil, err
	}
	l := binary.BigEndian.Uint32(lenBuf)
	if l > maxFrameSize {
		return nil, errTooBig(l)
	}
	payload := make([]byte, l)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// firstElem scans for the frame's top-level element, skipping leading
// character data and processing instructions; false when the payload has no
// well-formed root tag
func firstElem(payload []byte) (xml.StartElement, bool) {
	dec := xml.NewDecoder(bytes.NewReader(payload))
	for {
		tok, err := dec.Token()
		if err != nil {
			return xml.StartElement{}, false
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se, true
		}
	}
}

func attrOf(el xml.StartElement, name string) (string, bool) {
	for i := range el.Attr {
		if el.Attr[i].Name.Local == name {
			return el.Attr[i].Value, true
		}
	}
	return "", false
}
