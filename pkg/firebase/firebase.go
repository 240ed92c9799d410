package firebase

import (
	"context"
	"fmt"
	"log"
	"os"

	fs "cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// App holds the initialized Firebase app and the clients built from it
type App struct {
	FirebaseApp *firebase.App
	AuthClient  *auth.Client
	Firestore   *fs.Client
	Bucket      *storage.BucketHandle
	BucketName  string
}

// InitFirebase initializes the Firebase application with its auth,
// Firestore and storage clients
func InitFirebase(ctx context.Context, credentialsPath, projectID, bucket string) (*App, error) {
	if credentialsPath == "" {
		return nil, fmt.Errorf("Firebase credentials path not provided")
	}

	// Check if the credentials file exists
	if _, err := os.Stat(credentialsPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("Firebase credentials file not found at %s", credentialsPath)
	}

	opt := option.WithCredentialsFile(credentialsPath)

	firebaseApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID, StorageBucket: bucket}, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firebase auth client: %w", err)
	}

	firestoreClient, err := firebaseApp.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firestore client: %w", err)
	}

	app := &App{FirebaseApp: firebaseApp, AuthClient: authClient, Firestore: firestoreClient}
	if bucket != "" {
		storageClient, err := firebaseApp.Storage(ctx)
		if err != nil {
			firestoreClient.Close()
			return nil, fmt.Errorf("error getting storage client: %w", err)
		}
		handle, err := storageClient.DefaultBucket()
		if err != nil {
			firestoreClient.Close()
			return nil, fmt.Errorf("error getting storage bucket: %w", err)
		}
		app.Bucket = handle
		app.BucketName = bucket
	}

	log.Println("Firebase app, auth, firestore and storage clients initialized successfully!")
	return app, nil
}
