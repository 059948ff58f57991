// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command netframe-tool is a manual smoke-testing harness for the
// netframe package: a serve/client pair that exchanges logical packets
// over real TCP.
package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"code.hybscloud.com/netframe"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	root := &cobra.Command{
		Use:   "netframe-tool",
		Short: "Exercise netframe's packet framing over real TCP",
	}
	root.PersistentFlags().String("addr", "127.0.0.1:4306", "address to listen on or dial")
	root.PersistentFlags().Int("max-packet", 1<<20, "max_allowed_packet in bytes")
	root.PersistentFlags().Bool("compress", false, "enable per-frame compression")
	_ = v.BindPFlag("addr", root.PersistentFlags().Lookup("addr"))
	_ = v.BindPFlag("max-packet", root.PersistentFlags().Lookup("max-packet"))
	_ = v.BindPFlag("compress", root.PersistentFlags().Lookup("compress"))
	v.SetEnvPrefix("NETFRAME")
	v.AutomaticEnv()

	root.AddCommand(newServeCmd(v))
	root.AddCommand(newClientCmd(v))
	return root
}

func connOptions(v *viper.Viper, logger *zap.Logger) []netframe.Option {
	opts := []netframe.Option{
		netframe.WithMaxAllowedPacket(v.GetInt("max-packet")),
		netframe.WithCompression(v.GetBool("compress")),
		netframe.WithLogger(logger),
	}
	return opts
}

func newServeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Accept one connection and echo back every logical packet it sends",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, _ := zap.NewDevelopment()
			defer logger.Sync()

			ln, err := net.Listen("tcp", v.GetString("addr"))
			if err != nil {
				return err
			}
			defer ln.Close()
			logger.Info("listening", zap.String("addr", ln.Addr().String()))

			conn, err := ln.Accept()
			if err != nil {
				return err
			}
			defer conn.Close()

			nf, err := netframe.New(netframe.NetConn(conn), connOptions(v, logger)...)
			if err != nil {
				return err
			}
			defer nf.Close()

			for {
				payload, err := nf.ReadPacket()
				if err != nil {
					return err
				}
				echoed := append([]byte(nil), payload...)
				if err := nf.Enqueue(echoed); err != nil {
					return err
				}
			}
		},
	}
}

func newClientCmd(v *viper.Viper) *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Dial a netframe-tool server, send one packet, print the echo",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, _ := zap.NewDevelopment()
			defer logger.Sync()

			conn, err := net.DialTimeout("tcp", v.GetString("addr"), 5*time.Second)
			if err != nil {
				return err
			}
			defer conn.Close()

			nf, err := netframe.New(netframe.NetConn(conn), connOptions(v, logger)...)
			if err != nil {
				return err
			}
			defer nf.Close()

			if err := nf.Enqueue([]byte(message)); err != nil {
				return err
			}
			reply, err := nf.ReadPacket()
			if err != nil {
				return err
			}
			fmt.Printf("echo: %s\n", reply)
			return nil
		},
	}
	cmd.Flags().StringVar(&message, "message", "hello", "payload to send as one logical packet")
	return cmd
}
