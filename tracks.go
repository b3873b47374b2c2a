/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import "crypto/rand"

// Track catalogs are fixed label sets; the client maps labels to bundled
// audio. Every player in a round shares the normal track except the
// impostor, who gets one of these close-but-wrong variants.
var normalTracks = []string{
	"boogie-circuit.ogg",
	"electric-slide-ninety.ogg",
	"funk-overdrive.ogg",
	"midnight-strut.ogg",
	"neon-pulse.ogg",
	"roller-rink-rumble.ogg",
	"saturday-circuitry.ogg",
	"velvet-groove.ogg",
}

var impostorTracks = []string{
	"boogie-circuit-offbeat.ogg",
	"electric-slide-halftime.ogg",
	"funk-overdrive-detuned.ogg",
	"midnight-strut-swing.ogg",
	"neon-pulse-doubletime.ogg",
	"roller-rink-waltz.ogg",
	"saturday-circuitry-slow.ogg",
	"velvet-groove-shuffle.ogg",
}

// Playback never starts more than this far into a track, so short tracks
// still have a full dance window left.
const maxStartOffset = 45

// randomIndex returns a uniform value in [0, n) from crypto/rand,
// discarding draws that would introduce modulo bias. n must be at
// most 65536, which covers catalogs and the room code space.
func randomIndex(n int) int {
	if n <= 1 {
		return 0
	}

	limit := 65536 - (65536 % n)
	buf := make([]byte, 2)

	for {
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		v := int(buf[0])<<8 | int(buf[1])
		if v < limit {
			return v % n
		}
	}
}

func pickTrack(catalog []string) string {
	return catalog[randomIndex(len(catalog))]
}

func randomStartOffset() int {
	return randomIndex(maxStartOffset + 1)
}
