package services

import (
	"context"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

// InitFirebaseMessaging builds the FCM client used when PUSH_PROVIDER=fcm.
// Only messaging is used; logins are handled by our own JWTs.
func InitFirebaseMessaging(ctx context.Context, credPath string) (*messaging.Client, error) {
	if credPath == "" {
		return nil, errors.New("FIREBASE_CREDENTIALS_PATH not set")
	}
	fb, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credPath))
	if err != nil {
		return nil, errors.Wrapf(err, "firebase app from %s", credPath)
	}
	client, err := fb.Messaging(ctx)
	return client, errors.Wrap(err, "firebase messaging client")
}
