// Package link carries scheduler output off the device.
//
// A [Sink] receives every frame the transmission scheduler releases, tagged
// with its class. [WriterSink] and [FileSink] keep only the classes they are
// asked for, so a capture file holds nothing but record bytes.
// [SerialSink] multiplexes both classes over one serial port using the
// 3-byte link header of [EncodeFrame]; [ReadFrame] undoes it. [MQTTSink]
// publishes each class to its own topic.
package link
