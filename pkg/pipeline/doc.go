// Package pipeline wires the capture stages together.
//
// The fast domain calls [FastPublish] once per control period; it only
// copies a snapshot into the cross-domain queue. The slow domain runs a
// [Worker], which consumes snapshots, packs them per a [Profile] and writes
// them to a recorder. Once the capture window stops, [WindowSource] feeds
// it to the transmission scheduler and [Drain] copies it to any io.Writer.
package pipeline
