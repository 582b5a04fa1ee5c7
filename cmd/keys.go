package main

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/keywheel/go-keywheel-server/util"
	"github.com/keywheel/go-keywheel-server/vault"
	"github.com/spf13/cobra"
)

var outputFile string
var vaultService string

func init() {
	keysCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default is stdout)")
	keysCmd.Flags().StringVarP(&vaultService, "vault", "v", "", "store the private key in the OS keyring under this service name instead of writing it out")
	rootCmd.AddCommand(keysCmd)
}

// keysCmd generates an X25519 key-agreement keypair, either into the OS
// keyring vault or as a json file for manual provisioning
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Generate X25519 keys",
	Long:  "Generate an X25519 key-agreement keypair for use with Keywheel Server",
	Run: func(cmd *cobra.Command, args []string) {
		if vaultService != "" {
			kv, err := vault.NewKeyringVault(vaultService)
			check(err)
			publicKey, err := kv.GenerateKeypair()
			check(err)
			fmt.Printf("Public key (private key stored in keyring): %s\n", publicKey)
			return
		}

		privateKey, publicKey, err := util.GenerateX25519KeyPair()
		check(err)
		keysJson := map[string]interface{}{
			"type":       "keywheel_server_keys_x25519",
			"publicKey":  publicKey,
			"privateKey": base64.StdEncoding.EncodeToString(privateKey),
			"created":    time.Now().UnixMilli(),
		}
		fileBytes, err := json.MarshalIndent(keysJson, "", "  ")
		if outputFile != "" {
			// save keys to disk in a file
			// fail if file already exists
			if _, err := os.Stat(outputFile); !errors.Is(err, os.ErrNotExist) {
				fmt.Printf("File already exists: %s\n", outputFile)
				os.Exit(1)
			}
			check(err)
			err = os.WriteFile(outputFile, fileBytes, 0600)
			check(err)
			fmt.Printf("Output file: %s\n", outputFile)
		} else {
			fmt.Printf("\n%s\n", string(fileBytes))
		}
	},
}
