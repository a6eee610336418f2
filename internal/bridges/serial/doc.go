// Package serial drives microcontrollers attached over USB serial.
//
// A board is identified by name, not by path: Connect walks
// <port>0..<port>127, skips paths another device has claimed, and keeps
// the first port whose board answers NAME with the configured device
// name. Reconnect tries the last good path first.
//
//	drv, err := serial.New(dev, serial.Options{Claims: claims, Logger: log})
//	if err != nil {
//	    return err
//	}
//	ctrl := device.NewController(dev, drv, repo)
package serial
