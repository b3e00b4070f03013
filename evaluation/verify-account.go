// Standalone check tool that inspects a provisioned IMAP account with an
// independent client implementation. It is meant for verifying that
// mailboxes, folders and subscriptions created by the provisioning tool
// actually show up for the affected user.
package main

import (
	"flag"
	"log"
	"strconv"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

func main() {

	mailHost := flag.String("host", "", "name or ip address (required)")
	mailPort := flag.Int("port", 0, "port (required)")
	mailUser := flag.String("user", "", "username (required)")
	mailPassword := flag.String("pass", "", "password (required)")
	mailSSL := flag.Bool("ssl", false, "boolean") //optional

	flag.Parse()

	if len(*mailHost) == 0 || len(*mailUser) == 0 || len(*mailPassword) == 0 || *mailPort == 0 {
		log.Fatal("not enough arguments, try -h")
	}

	log.Println("Connecting to server...")

	var c *client.Client = nil
	var err error = nil

	if *mailSSL {
		c, err = client.DialTLS(*mailHost+":"+strconv.Itoa(*mailPort), nil)
	} else {
		c, err = client.Dial(*mailHost + ":" + strconv.Itoa(*mailPort))
	}

	if err != nil {
		log.Fatal(err)
	}
	log.Println("Connected")

	if err := c.Login(*mailUser, *mailPassword); err != nil {
		log.Fatal(err)
	}

	log.Println("Logged in")
	defer c.Logout()

	// List every mailbox visible to the user, which is
	// what the provisioning tool is supposed to have
	// created.
	mailboxes := make(chan *imap.MailboxInfo, 16)
	done := make(chan error, 1)

	go func() {
		done <- c.List("", "*", mailboxes)
	}()

	for m := range mailboxes {
		log.Printf("mailbox: %s (attributes: %v)\n", m.Name, m.Attributes)
	}

	if err := <-done; err != nil {
		log.Fatal(err)
	}

	// The subscription list must contain the default
	// folders as well.
	subscribed := make(chan *imap.MailboxInfo, 16)
	go func() {
		done <- c.Lsub("", "*", subscribed)
	}()

	for m := range subscribed {
		log.Printf("subscribed: %s\n", m.Name)
	}

	if err := <-done; err != nil {
		log.Fatal(err)
	}

	log.Println("Done!")
}
