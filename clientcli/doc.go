// Package clientcli is a client library for an ephemera server's HTTP API.
//
// It covers uploading, inspecting, downloading and deleting shared files, and
// keeps named server profiles in a YAML file so the command line client can
// switch between servers.
//
// # Basic Usage
//
//	client, err := clientcli.New(&clientcli.Config{
//		Endpoint: "http://localhost:3000",
//		Token:    os.Getenv("EPHEMERA_TOKEN"),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	results, err := client.Upload(ctx, clientcli.UploadOptions{
//		LocalPath: "./report.pdf",
//		ExpiresIn: 3,
//		Tags:      []string{"reports"},
//	})
//
// The returned share token is all a recipient needs:
//
//	info, err := client.Metadata(ctx, results[0].Token)
//
// # Profiles
//
//	configFile, err := clientcli.LoadConfigFile(clientcli.DefaultConfigPath())
//	profile, err := configFile.Lookup("production")
//	client, err := clientcli.New(clientcli.ConfigFromProfile(profile))
package clientcli
