package vt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/raibid-labs/scarab/internal/grid"
)

// dispatchOSC parses one complete OSC payload (without the leading ESC ]
// or trailing terminator) and applies its effect. An OSC with no
// recognized numeric code, or a malformed one, is dropped.
func (p *Parser) dispatchOSC(payload []byte) {
	s := string(payload)
	semi := strings.IndexByte(s, ';')
	var codeStr, rest string
	if semi < 0 {
		codeStr, rest = s, ""
	} else {
		codeStr, rest = s[:semi], s[semi+1:]
	}
	code, err := strconv.Atoi(codeStr)
	if err != nil {
		return
	}

	switch code {
	case 0, 2: // icon+title, or title only
		if p.opts.OnTitle != nil {
			p.opts.OnTitle(rest)
		}
	case 1: // icon name only: no separate sink, dropped
	case 4:
		p.handlePaletteOSC(rest)
	case 8:
		p.handleHyperlinkOSC(rest)
	case 10:
		p.handleColorOSC(10, rest, &p.fgColor)
	case 11:
		p.handleColorOSC(11, rest, &p.bgColor)
	case 12:
		p.handleColorOSC(12, rest, &p.cursorColor)
	case 133:
		if p.opts.OnSemanticZone != nil && len(rest) > 0 {
			p.opts.OnSemanticZone(rest[0])
		}
	}
}

func (p *Parser) reply(s string) {
	if p.opts.Reply != nil {
		p.opts.Reply([]byte(s))
	}
}

// handlePaletteOSC implements OSC 4: "index;spec" sets or (spec=="?")
// queries one palette entry. Multiple index;spec pairs may be
// semicolon-chained in a single OSC.
func (p *Parser) handlePaletteOSC(rest string) {
	parts := strings.Split(rest, ";")
	for i := 0; i+1 < len(parts); i += 2 {
		idx, err := strconv.Atoi(parts[i])
		if err != nil {
			continue
		}
		spec := parts[i+1]
		if spec == "?" {
			if cur, ok := p.palette[idx]; ok {
				p.reply(fmt.Sprintf("\x1b]4;%d;%s\x07", idx, cur))
			}
			continue
		}
		p.palette[idx] = spec
	}
}

// handleColorOSC implements OSC 10/11/12: set or query the foreground,
// background, or cursor color. target points at the matching field.
func (p *Parser) handleColorOSC(code int, rest string, target *string) {
	if rest == "?" {
		p.reply(fmt.Sprintf("\x1b]%d;%s\x07", code, *target))
		return
	}
	*target = rest
}

// handleHyperlinkOSC implements OSC 8: "params;URI". An empty URI closes
// the active hyperlink; otherwise the URI is assigned a stable id (first
// seen, first assigned) that gets packed into subsequent cells' Attrs.
func (p *Parser) handleHyperlinkOSC(rest string) {
	semi := strings.IndexByte(rest, ';')
	var uri string
	if semi >= 0 {
		uri = rest[semi+1:]
	}
	if uri == "" {
		p.activeLinkID = 0
		p.sgrAttrs = grid.WithHyperlinkID(p.sgrAttrs, 0)
		p.g.SetSGR(p.sgrFg, p.sgrBg, p.sgrAttrs)
		return
	}
	id, ok := p.hyperlinkIDs[uri]
	if !ok {
		if p.hyperlinkSeq == 0xFFFF {
			return // id space exhausted; link dropped, not assigned
		}
		p.hyperlinkSeq++
		id = p.hyperlinkSeq
		p.hyperlinkIDs[uri] = id
	}
	p.activeLinkID = id
	p.sgrAttrs = grid.WithHyperlinkID(p.sgrAttrs, id)
	p.g.SetSGR(p.sgrFg, p.sgrBg, p.sgrAttrs)
}
