package auth

import "testing"

func TestCaregiverTokenRoundTrip(t *testing.T) {
	token, err := GenerateCaregiverToken()
	if err != nil {
		t.Fatalf("GenerateCaregiverToken failed: %v", err)
	}

	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}

	if claims.Role != RoleCaregiver {
		t.Errorf("Expected role %q, got %q", RoleCaregiver, claims.Role)
	}
}

func TestDeviceTokenRoundTrip(t *testing.T) {
	token, err := GenerateDeviceToken("device-1")
	if err != nil {
		t.Fatalf("GenerateDeviceToken failed: %v", err)
	}

	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}

	if claims.Role != RoleDevice {
		t.Errorf("Expected role %q, got %q", RoleDevice, claims.Role)
	}
	if claims.DeviceID != "device-1" {
		t.Errorf("Expected device ID %q, got %q", "device-1", claims.DeviceID)
	}
}

func TestValidateToken_Garbage(t *testing.T) {
	if _, err := ValidateToken("not.a.token"); err == nil {
		t.Error("Expected error for garbage token")
	}
}
