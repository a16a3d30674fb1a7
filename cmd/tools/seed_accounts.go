// Seeds the self-hosted identity directory so a fresh deployment has
// accounts to log into. Stands in for the external provider's console.
//
//	go run ./cmd/tools -db ./data -phone "+61400000001" -name Alice
package main

import (
	"chatline/domain"
	"chatline/identity"
	"flag"
	"log"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
)

func main() {
	dbPath := flag.String("db", "./data", "Path to badger DB")
	phone := flag.String("phone", "", "Phone number in E.164 form")
	name := flag.String("name", "", "Display name")
	photo := flag.String("photo", "", "Profile photo URL")
	flag.Parse()

	if *phone == "" {
		log.Fatal("-phone is required")
	}

	db, err := badger.Open(badger.DefaultOptions(*dbPath).WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	directory := identity.NewBadgerDirectory(db)
	err = directory.CreateAccount(domain.Identity{
		Phone:       *phone,
		DisplayName: *name,
		PhotoURL:    *photo,
	})
	if err != nil {
		log.Fatal("Error while creating account: ", err)
	}

	color.Green.Printf("Account %s (%s) created\n", *phone, *name)
}
