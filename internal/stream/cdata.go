package stream

import "strings"

// brokenCDATAEnd is the marker Confluence leaves behind when it nests
// CDATA sections: a space is inserted after the two-character close
// marker so the outer section survives. It does not care whether a '>'
// follows.
const brokenCDATAEnd = "]] "

// repairedCDATAEnd is the close marker with the injected space removed.
const repairedCDATAEnd = "]]"

// RepairCDATA undoes the export-time CDATA escaping trick by rewriting
// every "]] " back to "]]". Applying it to already-repaired text is a
// no-op, so it is safe to run on any leaf string.
func RepairCDATA(s string) string {
	return strings.ReplaceAll(s, brokenCDATAEnd, repairedCDATAEnd)
}
